package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/config"
)

// =============================================================================
// 🌐 运维 HTTP 服务
// =============================================================================

// Backend 是运维服务背后的数据库，由 *dbsession.DB 实现
type Backend interface {
	HealthChecker
	Close() error
}

// Config 运维服务配置
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// StartupTimeout 限制启动前对数据库的 ping
	StartupTimeout  time.Duration
}

// ConfigFrom 由 dbsession 服务配置构建，零值超时使用默认值
func ConfigFrom(c config.ServerConfig) Config {
	cfg := Config{
		Addr:            fmt.Sprintf(":%d", c.HTTPPort),
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		StartupTimeout:  5 * time.Second,
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	if c.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = c.ShutdownTimeout
	}
	return cfg
}

// Manager 运行 /health 与 /metrics 服务并掌管关闭顺序：
// 先停止接收请求、等待在途请求结束，再关闭数据库。
type Manager struct {
	srv     *http.Server
	backend Backend
	cfg     Config
	logger  *zap.Logger
	errCh   chan error

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	closeErr error
}

// NewManager 创建运维服务，handler 通常是 NewMux 外加中间件链
func NewManager(backend Backend, handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		backend: backend,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "http_server")),
		errCh:   make(chan error, 1),
	}
}

// Start 确认数据库可达后开始监听（非阻塞）
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("server is closed")
	}
	if m.listener != nil {
		return errors.New("server already started")
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.StartupTimeout)
	defer cancel()
	if err := m.backend.Ping(pingCtx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Addr, err)
	}
	m.listener = ln

	stats := m.backend.GetStats()
	m.logger.Info("starting HTTP server",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_open_connections", stats.MaxOpenConnections),
		zap.Int("open_connections", stats.OpenConnections),
	)

	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("HTTP server failed", zap.Error(err))
			select {
			case m.errCh <- err:
			default:
			}
		}
	}()
	return nil
}

// Shutdown 停止 HTTP 服务后关闭数据库，重复调用返回首次结果
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return m.closeErr
	}
	m.closed = true

	shutdownCtx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := m.srv.Shutdown(shutdownCtx); err != nil {
		m.logger.Error("HTTP server shutdown failed", zap.Error(err))
		errs = append(errs, err)
	}
	m.listener = nil

	// 在途请求已结束，连接此时应已全部归还
	if inUse := m.backend.GetStats().InUse; inUse > 0 {
		m.logger.Warn("closing database with connections still in use", zap.Int("in_use", inUse))
	}
	if err := m.backend.Close(); err != nil {
		m.logger.Error("database close failed", zap.Error(err))
		errs = append(errs, err)
	}

	m.closeErr = errors.Join(errs...)
	m.logger.Info("HTTP server stopped")
	return m.closeErr
}

// Run 启动服务，阻塞到 ctx 结束或服务异常退出，然后按序关闭。
// 启动失败时同样关闭数据库。
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return errors.Join(err, m.Shutdown(context.Background()))
	}

	var runErr error
	select {
	case <-ctx.Done():
		m.logger.Info("shutdown requested", zap.Error(context.Cause(ctx)))
	case runErr = <-m.errCh:
	}

	return errors.Join(runErr, m.Shutdown(context.Background()))
}

// ListenAddr 返回实际监听地址，未启动或已关闭时为空
func (m *Manager) ListenAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}
