package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Game     GameConfig     `mapstructure:"game"`
	Crash    CrashConfig    `mapstructure:"crash"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	GameSettled     string `mapstructure:"game_settled"`
	WithdrawCreated string `mapstructure:"withdraw_created"`
}

// GameConfig 游戏通用参数
// HouseEdge 是平台抽水比例，所有赔付计算都要乘以 (1 - HouseEdge)
type GameConfig struct {
	HouseEdge   float64 `mapstructure:"house_edge"`
	MinBet      int64   `mapstructure:"min_bet"`
	MaxBet      int64   `mapstructure:"max_bet"`
	WithdrawMin int64   `mapstructure:"withdraw_min"`
	WithdrawFee float64 `mapstructure:"withdraw_fee"`
}

// CrashConfig Crash 回合引擎参数
type CrashConfig struct {
	WaitingSeconds int     `mapstructure:"waiting_seconds"` // 下注阶段时长（秒）
	TickMs         int     `mapstructure:"tick_ms"`         // 状态刷新间隔（毫秒）
	PauseSeconds   int     `mapstructure:"pause_seconds"`   // 爆炸后停顿（秒）
	GrowthK        float64 `mapstructure:"growth_k"`        // 倍率曲线系数 exp(k*t)
}

type BusinessConfig struct {
	MaxRetryCount      int `mapstructure:"max_retry_count"`
	SessionMaxAgeHours int `mapstructure:"session_max_age_hours"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
