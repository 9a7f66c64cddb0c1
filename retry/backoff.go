package retry

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAttempts is the attempt budget used when a policy leaves it unset.
const DefaultMaxAttempts = 3

// Policy 定义冲突重试策略
type Policy struct {
	MaxAttempts  int           // 总尝试次数（包含首次执行）
	InitialDelay time.Duration // 第一次重试前的延迟
	MaxDelay     time.Duration // 延迟上限
	Multiplier   float64       // 指数退避倍数

	// OnRetry 在每次退避等待前调用
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy 返回默认的冲突重试策略
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 50 * time.Millisecond
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	return p
}

// Delay returns the wait before retry number n (1-based): the wait between
// attempt n and attempt n+1. Delays never decrease and are never zero.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	if n < 1 {
		n = 1
	}

	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(n-1))
	if delay > float64(p.MaxDelay) || math.IsInf(delay, 1) {
		delay = float64(p.MaxDelay)
	}
	if delay < float64(p.InitialDelay) {
		delay = float64(p.InitialDelay)
	}
	return time.Duration(delay)
}

// Observer receives retry events, typically a metrics collector.
type Observer interface {
	ObserveRetry(attempt int, delay time.Duration, err error)
	ObserveRetryExhausted(attempts int, err error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Executor re-runs a unit of work that failed with a transient conflict.
// Any other failure is returned immediately and unchanged.
type Executor struct {
	policy   Policy
	logger   *zap.Logger
	classify func(error) bool
	sleep    Sleeper
	observer Observer
}

// Option configures an Executor.
type Option func(*Executor)

// WithClassifier replaces IsConflict as the retry predicate.
func WithClassifier(fn func(error) bool) Option {
	return func(e *Executor) {
		if fn != nil {
			e.classify = fn
		}
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(fn Sleeper) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// NewExecutor 创建冲突重试执行器
func NewExecutor(policy Policy, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Executor{
		policy:   policy.normalized(),
		logger:   logger.With(zap.String("component", "retry")),
		classify: IsConflict,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs fn with conflict retry.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Run invokes fn up to MaxAttempts times. It retries only while the failure
// is a conflict and budget remains; the final error is returned as is.
//
// fn is re-run in full. Retrying is only safe when the database rolled back
// everything fn did, which holds for work inside a transaction aborted by a
// deadlock or serialization failure, or for naturally idempotent statements.
func Run[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	if e == nil {
		return fn(ctx)
	}

	var zero T
	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.Info("conflict resolved after retry", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !e.classify(err) {
			return zero, err
		}

		if attempt >= e.policy.MaxAttempts {
			e.logger.Warn("conflict retries exhausted",
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			if e.observer != nil {
				e.observer.ObserveRetryExhausted(attempt, err)
			}
			return zero, err
		}

		delay := e.policy.Delay(attempt)
		e.logger.Warn("transient conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.String("sql_state", SQLState(err)),
			zap.Error(err),
		)
		if e.policy.OnRetry != nil {
			e.policy.OnRetry(attempt, err, delay)
		}
		if e.observer != nil {
			e.observer.ObserveRetry(attempt, delay, err)
		}

		if serr := e.sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
}
