package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/dbsession/types"
)

const tracerName = "github.com/BaSui01/dbsession/query"

// Observer receives per-statement timings.
type Observer interface {
	ObserveStatement(parallel bool, duration time.Duration, err error)
}

// Runner executes one or more statements on a borrowed handle.
type Runner struct {
	logger      *zap.Logger
	tracer      trace.Tracer
	observer    Observer
	maxParallel int
}

// Option configures a Runner.
type Option func(*Runner)

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithMaxParallel caps in-flight statements in parallel mode. n <= 0 means
// no cap.
func WithMaxParallel(n int) Option {
	return func(r *Runner) {
		r.maxParallel = n
	}
}

// NewRunner creates a Runner.
func NewRunner(logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		logger: logger.With(zap.String("component", "query_runner")),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs stmts on h and shapes the outcome: a single result for one
// statement, otherwise one result per statement in input order.
//
// Sequential mode stops at the first failure; statements before it have
// already taken effect and are not undone here. Parallel mode waits for
// every statement and returns the first failure observed.
func (r *Runner) Execute(ctx context.Context, h types.Handle, stmts []types.Statement, opts types.Options) (*types.Outcome, error) {
	if types.IsNilHandle(h) {
		return nil, types.NewConnectionUnavailableError()
	}
	if len(stmts) == 0 {
		return nil, types.NewConfigurationError("no statements to execute")
	}

	ctx, span := r.tracer.Start(ctx, "dbsession.execute", trace.WithAttributes(
		attribute.Int("db.statement.count", len(stmts)),
		attribute.Bool("db.parallel", opts.Parallel),
	))
	defer span.End()

	var (
		outcome *types.Outcome
		err     error
	)
	switch {
	case len(stmts) == 1:
		var res *types.Result
		res, err = r.run(ctx, h, 0, stmts[0], false)
		if err == nil {
			outcome = &types.Outcome{Single: res}
		}
	case opts.Parallel:
		outcome, err = r.runParallel(ctx, h, stmts)
	default:
		outcome, err = r.runSequential(ctx, h, stmts)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(types.GetErrorCode(err)))
		return nil, err
	}
	return outcome, nil
}

func (r *Runner) runSequential(ctx context.Context, h types.Handle, stmts []types.Statement) (*types.Outcome, error) {
	results := make([]*types.Result, 0, len(stmts))
	for i, stmt := range stmts {
		res, err := r.run(ctx, h, i, stmt, false)
		if err != nil {
			r.logger.Debug("sequential batch aborted",
				zap.Int("failed_index", i),
				zap.Int("completed", i),
				zap.Int("total", len(stmts)),
			)
			return nil, err
		}
		results = append(results, res)
	}
	return &types.Outcome{Results: results, Multi: true}, nil
}

func (r *Runner) runParallel(ctx context.Context, h types.Handle, stmts []types.Statement) (*types.Outcome, error) {
	results := make([]*types.Result, len(stmts))

	// 不使用 errgroup.WithContext：单条失败不取消其余已发出的语句
	var g errgroup.Group
	if r.maxParallel > 0 {
		g.SetLimit(r.maxParallel)
	}
	for i, stmt := range stmts {
		i, stmt := i, stmt
		g.Go(func() error {
			res, err := r.run(ctx, h, i, stmt, true)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &types.Outcome{Results: results, Multi: true}, nil
}

func (r *Runner) run(ctx context.Context, h types.Handle, index int, stmt types.Statement, parallel bool) (*types.Result, error) {
	ctx, span := r.tracer.Start(ctx, "dbsession.query", trace.WithAttributes(
		attribute.String("db.statement", stmt.SQL),
		attribute.Int("db.statement.index", index),
		attribute.Bool("db.parallel", parallel),
	))
	defer span.End()

	start := time.Now()
	res, err := h.Execute(ctx, stmt.SQL, stmt.Params)
	elapsed := time.Since(start)
	err = Classify(err)

	if r.observer != nil {
		r.observer.ObserveStatement(parallel, elapsed, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(types.GetErrorCode(err)))
		r.logger.Debug("statement failed",
			zap.Int("index", index),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, err
	}
	if res == nil {
		res = &types.Result{}
	}
	return res, nil
}
