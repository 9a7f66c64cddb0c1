package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/query"
	"github.com/BaSui01/dbsession/reference"
	"github.com/BaSui01/dbsession/retry"
	"github.com/BaSui01/dbsession/transaction"
	"github.com/BaSui01/dbsession/types"
)

// Pool hands out connection handles.
type Pool interface {
	Acquire(ctx context.Context) (types.Handle, error)
	Release(h types.Handle) error
	Close() error
}

// Deps are shared by every session created from the same pool.
type Deps struct {
	Runner     *query.Runner
	Executor   *retry.Executor
	References reference.Generator
	Logger     *zap.Logger
	TxObserver transaction.Observer

	// Strict is passed to every transaction the session creates.
	Strict bool
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Runner == nil {
		d.Runner = query.NewRunner(d.Logger)
	}
	if d.Executor == nil {
		d.Executor = retry.NewExecutor(retry.DefaultPolicy(), d.Logger)
	}
	if d.References == nil {
		d.References = reference.NewGenerator()
	}
	return d
}

// Session owns at most one handle checked out of a Pool.
type Session struct {
	pool   Pool
	deps   Deps
	logger *zap.Logger

	mu     sync.Mutex
	handle types.Handle
}

// New creates a session without acquiring a connection.
func New(pool Pool, deps Deps) *Session {
	deps = deps.withDefaults()
	return &Session{
		pool:   pool,
		deps:   deps,
		logger: deps.Logger.With(zap.String("component", "session")),
	}
}

// InitializeConnection acquires a handle from the pool. A session that
// already holds one keeps it.
func (s *Session) InitializeConnection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return nil
	}
	if s.pool == nil {
		return types.NewConnectionUnavailableError()
	}

	h, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Warn("failed to acquire connection", zap.Error(err))
		return types.NewError(types.ErrDatabaseExecution, "failed to acquire connection").WithCause(err)
	}
	if types.IsNilHandle(h) {
		return types.NewConnectionUnavailableError()
	}

	s.handle = h
	s.logger.Debug("connection acquired")
	return nil
}

// Handle returns the held handle, or nil.
func (s *Session) Handle() types.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Query runs stmts outside any transaction. Conflicts re-run the whole
// batch, so only idempotent statements should be sent here.
func (s *Session) Query(ctx context.Context, stmts []types.Statement, opts types.Options) (*types.Outcome, error) {
	h := s.Handle()
	return retry.Run(ctx, s.deps.Executor, func(ctx context.Context) (*types.Outcome, error) {
		return s.deps.Runner.Execute(ctx, h, stmts, opts)
	})
}

// QueryOne runs a single statement outside any transaction.
func (s *Session) QueryOne(ctx context.Context, sql string, params ...any) (*types.Result, error) {
	outcome, err := s.Query(ctx, query.Single(sql, params...), types.Options{})
	if err != nil {
		return nil, err
	}
	return outcome.Single, nil
}

// Transaction returns a new transaction manager bound to the held handle.
// The manager borrows the handle; the session still releases it.
func (s *Session) Transaction() *transaction.Tx {
	return transaction.New(s.Handle(), transaction.Deps{
		Runner:     s.deps.Runner,
		Executor:   s.deps.Executor,
		References: s.deps.References,
		Logger:     s.deps.Logger,
		Observer:   s.deps.TxObserver,
		Strict:     s.deps.Strict,
	})
}

// ReleaseConnection returns the held handle to the pool. Without a handle
// it does nothing.
func (s *Session) ReleaseConnection() error {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	if err := s.pool.Release(h); err != nil {
		s.logger.Warn("failed to release connection", zap.Error(err))
		return types.NewError(types.ErrDatabaseExecution, "failed to release connection").WithCause(err)
	}
	s.logger.Debug("connection released")
	return nil
}

// Terminate releases the held handle and shuts down the whole pool.
func (s *Session) Terminate() error {
	if err := s.ReleaseConnection(); err != nil {
		s.logger.Warn("release before terminate failed", zap.Error(err))
	}
	if s.pool == nil {
		return nil
	}
	if err := s.pool.Close(); err != nil {
		return types.NewError(types.ErrDatabaseExecution, "failed to close pool").WithCause(err)
	}
	s.logger.Info("connection pool closed")
	return nil
}

// With acquires a connection, runs fn and always releases the connection.
func With(ctx context.Context, pool Pool, deps Deps, fn func(ctx context.Context, s *Session) error) error {
	s := New(pool, deps)
	if err := s.InitializeConnection(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.ReleaseConnection(); err != nil {
			s.logger.Error("release after use failed", zap.Error(err))
		}
	}()
	return fn(ctx, s)
}
