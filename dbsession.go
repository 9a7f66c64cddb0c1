// Package dbsession 是顶层入口：按配置打开连接池，并把语句执行、冲突重试、
// 事务与指标装配为可直接使用的会话。
//
//	db, err := dbsession.Open(cfg, dbsession.WithLogger(logger))
//	if err != nil { ... }
//	defer db.Close()
//
//	err = db.With(ctx, func(ctx context.Context, s *session.Session) error {
//		return transaction.Run(ctx, s.Transaction(), func(ctx context.Context, tx *transaction.Tx) error {
//			_, err := tx.QueryOne(ctx, "UPDATE accounts SET balance = balance - $1 WHERE id = $2", 10, 1)
//			return err
//		})
//	})
package dbsession

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/config"
	"github.com/BaSui01/dbsession/internal/database"
	"github.com/BaSui01/dbsession/internal/metrics"
	"github.com/BaSui01/dbsession/internal/telemetry"
	"github.com/BaSui01/dbsession/query"
	"github.com/BaSui01/dbsession/reference"
	"github.com/BaSui01/dbsession/retry"
	"github.com/BaSui01/dbsession/session"
)

// DB 持有连接池与所有会话共享的依赖
type DB struct {
	pool      *database.PoolManager
	collector *metrics.Collector
	providers *telemetry.Providers
	poolGauge metric.Registration
	deps      session.Deps
	logger    *zap.Logger
}

type options struct {
	logger     *zap.Logger
	noMetrics  bool
	registerer prometheus.Registerer
	references reference.Generator
}

// Option 配置 Open
type Option func(*options)

// WithLogger 设置日志器，默认不输出
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithoutMetrics 不创建 Prometheus 指标收集器
func WithoutMetrics() Option {
	return func(o *options) { o.noMetrics = true }
}

// WithRegisterer 把指标注册到 reg 而不是默认注册表
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithReferences 替换事务参考号生成器
func WithReferences(g reference.Generator) Option {
	return func(o *options) { o.references = g }
}

// Open 按配置初始化遥测、指标与连接池。
// 指标默认注册在 Prometheus 默认注册表，命名空间取 cfg.Server.MetricsNamespace；
// Close 会注销这些指标，因此同一配置可以再次 Open。
func Open(cfg *config.Config, opts ...Option) (*DB, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if o.references == nil {
		o.references = reference.NewGenerator()
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	var collector *metrics.Collector
	var poolOpts []database.Option
	runnerOpts := []query.Option{query.WithMaxParallel(cfg.Query.MaxParallel)}
	var retryOpts []retry.Option
	if !o.noMetrics {
		collector = metrics.NewCollector(cfg.Server.MetricsNamespace, o.registerer, logger)
		poolOpts = append(poolOpts, database.WithStatsObserver(collector))
		runnerOpts = append(runnerOpts, query.WithObserver(collector))
		retryOpts = append(retryOpts, retry.WithObserver(collector))
	}

	pool, err := database.Open(
		cfg.Database.Driver,
		cfg.Database.DSN(),
		cfg.Database.PoolConfig(),
		logger,
		poolOpts...,
	)
	if err != nil {
		if collector != nil {
			collector.Unregister()
		}
		_ = otelProviders.Shutdown(context.Background())
		return nil, err
	}

	poolGauge, err := telemetry.RegisterPoolMetrics(otel.Meter(telemetry.MeterName), pool.GetStats)
	if err != nil {
		logger.Warn("failed to register pool metrics", zap.Error(err))
	}

	deps := session.Deps{
		Runner:     query.NewRunner(logger, runnerOpts...),
		Executor:   retry.NewExecutor(cfg.Retry.Policy(), logger, retryOpts...),
		References: o.references,
		Logger:     logger,
		Strict:     cfg.Transaction.Strict,
	}
	if collector != nil {
		deps.TxObserver = collector
	}

	return &DB{
		pool:      pool,
		collector: collector,
		providers: otelProviders,
		poolGauge: poolGauge,
		deps:      deps,
		logger:    logger,
	}, nil
}

// NewSession 创建尚未获取连接的会话
func (db *DB) NewSession() *session.Session {
	return session.New(db.pool, db.deps)
}

// With 获取一个连接运行 fn，结束后总是归还连接
func (db *DB) With(ctx context.Context, fn func(ctx context.Context, s *session.Session) error) error {
	return session.With(ctx, db.pool, db.deps, fn)
}

// Middleware 为每个 HTTP 请求提供按需获取连接的会话
func (db *DB) Middleware() func(http.Handler) http.Handler {
	return session.Middleware(db.pool, db.deps)
}

// Ping 检查数据库连通性
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// GetStats 返回连接池统计
func (db *DB) GetStats() database.PoolStats {
	return db.pool.GetStats()
}

// Collector 返回指标收集器，WithoutMetrics 时为 nil
func (db *DB) Collector() *metrics.Collector {
	return db.collector
}

// Close 关闭连接池、注销指标并刷新遥测数据
func (db *DB) Close() error {
	var errs []error
	if db.collector != nil {
		db.collector.Unregister()
	}
	if db.poolGauge != nil {
		if err := db.poolGauge.Unregister(); err != nil {
			errs = append(errs, err)
		}
		db.poolGauge = nil
	}
	if err := db.pool.Close(); err != nil {
		errs = append(errs, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.providers.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
