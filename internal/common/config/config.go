package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Consul       ConsulConfig       `json:"consul"`
	Jaeger       JaegerConfig       `json:"jaeger"`
	Log          LogConfig          `json:"log"`
	Auth         AuthConfig         `json:"auth"`
	Advisor      AdvisorConfig      `json:"advisor"`
	Housekeeping HousekeepingConfig `json:"housekeeping"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name         string `json:"name"`           // 服务名称
	Host         string `json:"host"`           // 服务地址
	HTTPPort     int    `json:"http_port"`      // HTTP API 端口
	HealthPort   int    `json:"health_port"`    // gRPC 健康检查端口（供 Consul GRPC check 探测）
	RateLimitQPS int64  `json:"rate_limit_qps"` // API 限流（令牌桶 QPS，0 表示不限流）
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `json:"driver"`   // 数据库驱动
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// LogConfig 日志配置
type LogConfig struct {
	Driver string `json:"driver"` // logrus, zap
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

// AuthConfig 鉴权配置（JWT + 路由级 RBAC）
type AuthConfig struct {
	Enabled       bool   `json:"enabled"`
	JWTSecret     string `json:"jwt_secret"`
	Issuer        string `json:"issuer"`
	Audience      string `json:"audience"`
	TokenTTLHours int    `json:"token_ttl_hours"`
	// PublicPaths 中的路径前缀不做鉴权（如 /api/auth/ /healthz）
	PublicPaths []string `json:"public_paths"`
	// RBAC: 路由前缀 -> 允许的角色集合。未配置的路由默认"只鉴权，不限权"。
	// 生命周期引擎内部仍会独立复核角色，这里只是第一道闸。
	RBAC map[string][]string `json:"rbac"`
}

// AdvisorConfig 外部调度建议服务配置
type AdvisorConfig struct {
	Endpoint       string `json:"endpoint"`        // 建议服务 HTTP 地址，空表示禁用
	TimeoutSeconds int    `json:"timeout_seconds"` // 单次请求超时
	MaxFailures    int    `json:"max_failures"`    // 熔断阈值
	ResetSeconds   int    `json:"reset_seconds"`   // 熔断恢复窗口
}

// HousekeepingConfig 后台例行任务配置（5 段式 cron 表达式）
type HousekeepingConfig struct {
	Enabled         bool   `json:"enabled"`
	PurgeSpec       string `json:"purge_spec"`       // 归档任务清理时间
	ResetSpec       string `json:"reset_spec"`       // 司机可用性重置时间
	RetentionMonths int    `json:"retention_months"` // 归档保留月数
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:         "fleet-service",
			Host:         "0.0.0.0",
			HTTPPort:     8080,
			HealthPort:   50051,
			RateLimitQPS: 0,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "chakrafleet",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		Log: LogConfig{
			Driver: "logrus",
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
		Auth: AuthConfig{
			Enabled:       true,
			JWTSecret:     "dev-secret-change-me",
			Issuer:        "chakrafleet",
			Audience:      "chakrafleet",
			TokenTTLHours: 24,
			PublicPaths:   []string{"/healthz", "/api/auth/"},
			RBAC: map[string][]string{
				"/api/users":         {"Admin"},
				"/api/vehicles":      {"Admin"},
				"/api/vehicle-types": {"Admin"},
				"/api/activity":      {"Admin"},
				"/api/advisor":       {"Admin"},
				"/api/export":        {"Admin"},
			},
		},
		Advisor: AdvisorConfig{
			Endpoint:       "",
			TimeoutSeconds: 15,
			MaxFailures:    5,
			ResetSeconds:   30,
		},
		Housekeeping: HousekeepingConfig{
			Enabled:         true,
			PurgeSpec:       "30 3 * * *",
			ResetSpec:       "0 4 * * *",
			RetentionMonths: 2,
		},
	}
}
