package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/dbsession/internal/database"
	"github.com/BaSui01/dbsession/retry"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 dbsession 的完整配置结构
type Config struct {
	// Server 健康检查与指标 HTTP 服务
	Server ServerConfig `yaml:"server"`

	// Database 数据库与连接池
	Database DatabaseConfig `yaml:"database"`

	// Retry 冲突重试策略
	Retry RetryConfig `yaml:"retry"`

	// Query 语句执行
	Query QueryConfig `yaml:"query"`

	// Transaction 事务
	Transaction TransactionConfig `yaml:"transaction"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Prometheus 指标命名空间
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver"`
	// 主机
	Host string `yaml:"host"`
	// 端口
	Port int `yaml:"port"`
	// 用户名
	User string `yaml:"user"`
	// 密码
	Password string `yaml:"password"`
	// 数据库名，sqlite 下为文件路径
	Name string `yaml:"name"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	// 连接最大空闲时间
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	// 健康检查间隔，0 表示关闭
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// RetryConfig 冲突重试配置
type RetryConfig struct {
	// 最大尝试次数（含首次）
	MaxAttempts int `yaml:"max_attempts"`
	// 首次退避
	InitialDelay time.Duration `yaml:"initial_delay"`
	// 退避上限
	MaxDelay time.Duration `yaml:"max_delay"`
	// 退避倍数
	Multiplier float64 `yaml:"multiplier"`
}

// QueryConfig 语句执行配置
type QueryConfig struct {
	// 并行模式下同时在途的语句上限，0 表示不限
	MaxParallel int `yaml:"max_parallel"`
}

// TransactionConfig 事务配置
type TransactionConfig struct {
	// 严格模式：未 Init 或已结束的事务拒绝执行语句
	Strict bool `yaml:"strict"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level"`
	// 输出格式: json, console
	Format string `yaml:"format"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// 服务名称
	ServiceName string `yaml:"service_name"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate"`
}

// =============================================================================
// 🔍 校验与转换
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}

	switch c.Database.Driver {
	case database.DriverPostgres, database.DriverMySQL, database.DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.Driver == database.DriverSQLite && c.Database.Name == "" {
		errs = append(errs, "sqlite requires database name (file path)")
	}
	if err := c.Database.PoolConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry max_attempts must be at least 1")
	}
	if c.Retry.InitialDelay <= 0 {
		errs = append(errs, "retry initial_delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		errs = append(errs, "retry max_delay must not be below initial_delay")
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, "retry multiplier must be at least 1")
	}

	if c.Query.MaxParallel < 0 {
		errs = append(errs, "query max_parallel must not be negative")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case database.DriverPostgres:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case database.DriverMySQL:
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case database.DriverSQLite:
		return d.Name
	default:
		return ""
	}
}

// PoolConfig 转换为连接池配置
func (d *DatabaseConfig) PoolConfig() database.PoolConfig {
	return database.PoolConfig{
		MaxIdleConns:        d.MaxIdleConns,
		MaxOpenConns:        d.MaxOpenConns,
		ConnMaxLifetime:     d.ConnMaxLifetime,
		ConnMaxIdleTime:     d.ConnMaxIdleTime,
		HealthCheckInterval: d.HealthCheckInterval,
	}
}

// Policy 转换为重试策略
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   r.Multiplier,
	}
}
