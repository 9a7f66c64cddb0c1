package transaction

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/query"
	"github.com/BaSui01/dbsession/reference"
	"github.com/BaSui01/dbsession/retry"
	"github.com/BaSui01/dbsession/types"
)

// Transaction control commands.
const (
	CommandBegin    = "BEGIN"
	CommandCommit   = "COMMIT"
	CommandRollback = "ROLLBACK"
)

// Observer receives transaction lifecycle events.
type Observer interface {
	ObserveTransaction(op string, err error)
}

// Deps are the collaborators of a Tx. Zero values get defaults.
type Deps struct {
	Runner     *query.Runner
	Executor   *retry.Executor
	References reference.Generator
	Logger     *zap.Logger
	Observer   Observer

	// Strict rejects Query outside the Active state.
	Strict bool
}

// Tx is a transaction bound to one borrowed connection handle. It never
// releases the handle.
type Tx struct {
	handle   types.Handle
	runner   *query.Runner
	executor *retry.Executor
	refs     reference.Generator
	logger   *zap.Logger
	observer Observer
	strict   bool

	mu    sync.RWMutex
	state types.TransactionState
	begun bool
	meta  types.Metadata
}

// New creates a transaction manager in the Uninitialized state.
func New(h types.Handle, deps Deps) *Tx {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Runner == nil {
		deps.Runner = query.NewRunner(logger)
	}
	if deps.Executor == nil {
		deps.Executor = retry.NewExecutor(retry.DefaultPolicy(), logger)
	}
	if deps.References == nil {
		deps.References = reference.NewGenerator()
	}

	bound := !types.IsNilHandle(h)
	if !bound {
		h = nil
	}

	return &Tx{
		handle:   h,
		runner:   deps.Runner,
		executor: deps.Executor,
		refs:     deps.References,
		logger:   logger.With(zap.String("component", "transaction")),
		observer: deps.Observer,
		strict:   deps.Strict,
		state:    types.TxUninitialized,
		meta:     types.Metadata{Connection: bound},
	}
}

// Init issues BEGIN and moves the transaction to Active.
func (t *Tx) Init(ctx context.Context) error {
	if t.handle == nil {
		err := types.NewTransactionError("cannot begin transaction", types.NewConnectionUnavailableError())
		t.observe("begin", err)
		return err
	}

	if _, err := t.handle.Execute(ctx, CommandBegin, nil); err != nil {
		err = wrap("begin failed", query.Classify(err))
		t.observe("begin", err)
		return err
	}

	t.mu.Lock()
	t.begun = true
	t.state = types.TxActive
	t.mu.Unlock()

	t.logger.Debug("transaction started")
	t.observe("begin", nil)
	return nil
}

// Query runs stmts through the conflict retry executor. On success the
// reference number and timestamp are regenerated. On failure nothing is
// rolled back; that is up to the caller.
func (t *Tx) Query(ctx context.Context, stmts []types.Statement, opts types.Options) (*types.Outcome, error) {
	if t.strict {
		if state := t.State(); state != types.TxActive {
			err := types.NewTransactionError(fmt.Sprintf("transaction is %s", state), nil)
			t.observe("query", err)
			return nil, err
		}
	}

	outcome, err := retry.Run(ctx, t.executor, func(ctx context.Context) (*types.Outcome, error) {
		return t.runner.Execute(ctx, t.handle, stmts, opts)
	})
	if err != nil {
		err = wrap("query failed", err)
		t.observe("query", err)
		return nil, err
	}

	ref := t.refs.Next()
	t.mu.Lock()
	t.meta = types.Metadata{
		Connection:  true,
		ReferenceNo: ref.No,
		Timestamp:   ref.Timestamp,
	}
	t.mu.Unlock()

	t.observe("query", nil)
	return outcome, nil
}

// QueryOne runs a single statement and returns its result.
func (t *Tx) QueryOne(ctx context.Context, sql string, params ...any) (*types.Result, error) {
	outcome, err := t.Query(ctx, query.Single(sql, params...), types.Options{})
	if err != nil {
		return nil, err
	}
	return outcome.Single, nil
}

// Commit issues COMMIT. There is no client-side guard: calling it again
// re-sends the command.
func (t *Tx) Commit(ctx context.Context) error {
	if t.handle == nil {
		err := types.NewTransactionError("cannot commit transaction", types.NewConnectionUnavailableError())
		t.observe("commit", err)
		return err
	}

	if _, err := t.handle.Execute(ctx, CommandCommit, nil); err != nil {
		err = types.NewTransactionError("commit failed", query.Classify(err))
		t.observe("commit", err)
		return err
	}

	t.mu.Lock()
	t.state = types.TxTerminated
	t.mu.Unlock()

	t.logger.Debug("transaction committed")
	t.observe("commit", nil)
	return nil
}

// Rollback issues ROLLBACK and never fails, so it is safe in cleanup paths.
// The command is only sent once BEGIN has been acknowledged. The state
// becomes Terminated either way.
func (t *Tx) Rollback(ctx context.Context) {
	t.mu.Lock()
	begun := t.begun
	t.state = types.TxTerminated
	t.mu.Unlock()

	if t.handle == nil || !begun {
		t.logger.Debug("rollback skipped, no transaction started")
		return
	}

	_, err := t.handle.Execute(ctx, CommandRollback, nil)

	if err != nil {
		t.logger.Error("rollback failed", zap.Error(err))
		t.observe("rollback", err)
		return
	}
	t.logger.Debug("transaction rolled back")
	t.observe("rollback", nil)
}

// Retrieve returns the metadata of the last successful query.
func (t *Tx) Retrieve() types.Metadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.meta
}

// State returns the lifecycle state.
func (t *Tx) State() types.TransactionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tx) observe(op string, err error) {
	if t.observer != nil {
		t.observer.ObserveTransaction(op, err)
	}
}

// wrap re-tags classified errors as transaction errors, keeping the cause.
// Unclassified errors, such as context cancellation, pass through unchanged.
func wrap(message string, err error) error {
	if _, ok := types.AsError(err); ok {
		return types.NewTransactionError(message, err)
	}
	return err
}
