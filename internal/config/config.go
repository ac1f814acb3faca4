// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库

	"telemed_server/pkg/constants"
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName string `toml:"appName"` // 应用名称，用于日志标识等
	Host    string `toml:"host"`    // 服务器监听地址，如 "0.0.0.0"
	Port    int    `toml:"port"`    // 服务器监听端口，如 8000
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
}

// RedisConfig Redis 连接配置
// Redis 承担两个职责：WebSocket 连接凭证（一次性、短时效）存储，
// 以及问诊消息列表的读缓存
type RedisConfig struct {
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 消息队列配置
// messageMode 为 "kafka" 时，会话生命周期事件同时发布到事件主题，
// 供审计和多实例部署时的跨实例转发使用；"channel" 为单机模式
type KafkaConfig struct {
	MessageMode string        `toml:"messageMode"` // 消息模式："channel" 或 "kafka"
	HostPort    string        `toml:"hostPort"`    // Kafka 服务器地址，如 "localhost:9092"
	EventTopic  string        `toml:"eventTopic"`  // 会话事件主题
	Partition   int           `toml:"partition"`   // 分区数
	Timeout     time.Duration `toml:"timeout"`     // 超时时间
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟）
}

// ConsultationConfig 问诊业务配置
// writeBackoff 为毫秒数，使用处乘以 time.Millisecond
type ConsultationConfig struct {
	MessageLimit   int           `toml:"messageLimit"`   // 默认消息配额，如 30
	LimitIncrement int           `toml:"limitIncrement"` // 单次续费增加的配额
	WriteAttempts  int           `toml:"writeAttempts"`  // 乐观锁写入最大尝试次数
	WriteBackoff   time.Duration `toml:"writeBackoff"`   // 写冲突重试退避基数（毫秒数）
}

// PaymentConfig 外部支付服务配置
// endpoint 留空时凭证校验直接放行，仅限本地开发
type PaymentConfig struct {
	Endpoint string `toml:"endpoint"` // 凭证校验接口地址
}

// NotificationConfig 通知投递配置
// RetryDelays 以数据形式描述重试计划，便于单元测试注入极小延迟
type NotificationConfig struct {
	RetryDelays []time.Duration `toml:"retryDelays"` // 重要通知的重试延迟序列（秒数），如 [2, 4, 8]
}

// WebsocketConfig WebSocket 网关配置
// 时间项均为秒数，使用处乘以 time.Second
type WebsocketConfig struct {
	IdleTimeout     time.Duration `toml:"idleTimeout"`     // 空闲连接超时（秒数），超时后断开
	ReadBufferSize  int           `toml:"readBufferSize"`  // 读缓冲区大小
	WriteBufferSize int           `toml:"writeBufferSize"` // 写缓冲区大小
	TicketExpiry    time.Duration `toml:"ticketExpiry"`    // 连接凭证有效期（秒数），约 5 分钟
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023，分布式部署时每台机器需唯一
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig         `toml:"mainConfig"`         // 主配置
	MysqlConfig        `toml:"mysqlConfig"`        // MySQL 配置
	RedisConfig        `toml:"redisConfig"`        // Redis 配置
	LogConfig          `toml:"logConfig"`          // 日志配置
	KafkaConfig        `toml:"kafkaConfig"`        // Kafka 配置
	JWTConfig          `toml:"jwtConfig"`          // JWT 配置
	ConsultationConfig `toml:"consultationConfig"` // 问诊业务配置
	PaymentConfig      `toml:"paymentConfig"`      // 支付服务配置
	NotificationConfig `toml:"notificationConfig"` // 通知投递配置
	WebsocketConfig    `toml:"websocketConfig"`    // WebSocket 网关配置
	SnowflakeConfig    `toml:"snowflakeConfig"`    // 雪花算法配置
}

// config 全局配置单例，延迟加载
var config *Config

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig() error {
	// 候选配置文件路径（优先加载本地配置）
	paths := []string{
		"configs/config_local.toml",       // 本地开发配置（优先）
		"configs/config.toml",             // 默认配置
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",       // 从子目录运行时的路径
	}

	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			applyDefaults(config)
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// applyDefaults 填充未配置项的默认值
func applyDefaults(c *Config) {
	if c.ConsultationConfig.MessageLimit <= 0 {
		c.ConsultationConfig.MessageLimit = constants.DEFAULT_MESSAGE_LIMIT
	}
	if c.ConsultationConfig.LimitIncrement <= 0 {
		c.ConsultationConfig.LimitIncrement = constants.MESSAGE_LIMIT_INCREMENT
	}
	if c.ConsultationConfig.WriteAttempts <= 0 {
		c.ConsultationConfig.WriteAttempts = constants.WRITE_RETRY_ATTEMPTS
	}
	if c.ConsultationConfig.WriteBackoff <= 0 {
		c.ConsultationConfig.WriteBackoff = 50
	}
	if len(c.NotificationConfig.RetryDelays) == 0 {
		c.NotificationConfig.RetryDelays = []time.Duration{2, 4, 8}
	}
	if c.WebsocketConfig.IdleTimeout <= 0 {
		c.WebsocketConfig.IdleTimeout = 300
	}
	if c.WebsocketConfig.ReadBufferSize <= 0 {
		c.WebsocketConfig.ReadBufferSize = 2048
	}
	if c.WebsocketConfig.WriteBufferSize <= 0 {
		c.WebsocketConfig.WriteBufferSize = 2048
	}
	if c.WebsocketConfig.TicketExpiry <= 0 {
		c.WebsocketConfig.TicketExpiry = constants.WS_TICKET_EXPIRY_SECOND
	}
	if c.KafkaConfig.Timeout <= 0 {
		c.KafkaConfig.Timeout = 10
	}
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件
func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		if err := LoadConfig(); err != nil {
			applyDefaults(config) // 找不到配置文件时同样给默认值
		}
	}
	return config
}
