// =============================================================================
// 📦 dbsession 配置加载器
// =============================================================================
// 配置优先级: 默认值 → YAML 文件 → 环境变量
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("dbsession.yaml").
//	    WithValidator((*config.Config).Validate).
//	    Load()
//
// 环境变量名为前缀加 envBindings 中的键，例如 DBSESSION_DATABASE_HOST、
// DBSESSION_RETRY_MAX_ATTEMPTS。
// =============================================================================
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 默认环境变量前缀
const DefaultEnvPrefix = "DBSESSION"

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
	applied    []string
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{envPrefix: DefaultEnvPrefix}
}

// WithConfigPath 设置配置文件路径，文件不存在时沿用默认值
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// AppliedEnv 返回上次 Load 实际生效的环境变量名（已排序）。
// 密码等敏感值只暴露变量名。
func (l *Loader) AppliedEnv() []string {
	return append([]string(nil), l.applied...)
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	l.applied = l.applied[:0]
	for key, set := range envBindings(cfg) {
		name := l.envPrefix + "_" + key
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if err := set(value); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
		l.applied = append(l.applied, name)
	}
	sort.Strings(l.applied)
	return nil
}

// =============================================================================
// 🔧 环境变量绑定
// =============================================================================

type setter func(string) error

// envBindings 把去掉前缀的环境变量名映射到 cfg 字段
func envBindings(cfg *Config) map[string]setter {
	s, d, r, q := &cfg.Server, &cfg.Database, &cfg.Retry, &cfg.Query
	lg, tm := &cfg.Log, &cfg.Telemetry

	return map[string]setter{
		"SERVER_HTTP_PORT":         intVar(&s.HTTPPort),
		"SERVER_READ_TIMEOUT":      durationVar(&s.ReadTimeout),
		"SERVER_WRITE_TIMEOUT":     durationVar(&s.WriteTimeout),
		"SERVER_SHUTDOWN_TIMEOUT":  durationVar(&s.ShutdownTimeout),
		"SERVER_METRICS_NAMESPACE": stringVar(&s.MetricsNamespace),

		"DATABASE_DRIVER":                stringVar(&d.Driver),
		"DATABASE_HOST":                  stringVar(&d.Host),
		"DATABASE_PORT":                  intVar(&d.Port),
		"DATABASE_USER":                  stringVar(&d.User),
		"DATABASE_PASSWORD":              stringVar(&d.Password),
		"DATABASE_NAME":                  stringVar(&d.Name),
		"DATABASE_SSL_MODE":              stringVar(&d.SSLMode),
		"DATABASE_MAX_OPEN_CONNS":        intVar(&d.MaxOpenConns),
		"DATABASE_MAX_IDLE_CONNS":        intVar(&d.MaxIdleConns),
		"DATABASE_CONN_MAX_LIFETIME":     durationVar(&d.ConnMaxLifetime),
		"DATABASE_CONN_MAX_IDLE_TIME":    durationVar(&d.ConnMaxIdleTime),
		"DATABASE_HEALTH_CHECK_INTERVAL": durationVar(&d.HealthCheckInterval),

		"RETRY_MAX_ATTEMPTS":  intVar(&r.MaxAttempts),
		"RETRY_INITIAL_DELAY": durationVar(&r.InitialDelay),
		"RETRY_MAX_DELAY":     durationVar(&r.MaxDelay),
		"RETRY_MULTIPLIER":    floatVar(&r.Multiplier),

		"QUERY_MAX_PARALLEL": intVar(&q.MaxParallel),
		"TRANSACTION_STRICT": boolVar(&cfg.Transaction.Strict),

		"LOG_LEVEL":             stringVar(&lg.Level),
		"LOG_FORMAT":            stringVar(&lg.Format),
		"LOG_OUTPUT_PATHS":      listVar(&lg.OutputPaths),
		"LOG_ENABLE_CALLER":     boolVar(&lg.EnableCaller),
		"LOG_ENABLE_STACKTRACE": boolVar(&lg.EnableStacktrace),

		"TELEMETRY_ENABLED":       boolVar(&tm.Enabled),
		"TELEMETRY_OTLP_ENDPOINT": stringVar(&tm.OTLPEndpoint),
		"TELEMETRY_SERVICE_NAME":  stringVar(&tm.ServiceName),
		"TELEMETRY_SAMPLE_RATE":   floatVar(&tm.SampleRate),
	}
}

func stringVar(p *string) setter {
	return func(v string) error {
		*p = v
		return nil
	}
}

func intVar(p *int) setter {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = n
		return nil
	}
}

func floatVar(p *float64) setter {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*p = f
		return nil
	}
}

func boolVar(p *bool) setter {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p = b
		return nil
	}
}

func durationVar(p *time.Duration) setter {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
		return nil
	}
}

// listVar 解析逗号分隔的列表
func listVar(p *[]string) setter {
	return func(v string) error {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*p = parts
		return nil
	}
}
