package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/query"
	"github.com/BaSui01/dbsession/reference"
	"github.com/BaSui01/dbsession/retry"
	"github.com/BaSui01/dbsession/testutil/mocks"
	"github.com/BaSui01/dbsession/types"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// sequenceRefs hands out ref-1, ref-2, ... with a timestamp per call.
func sequenceRefs() reference.Generator {
	var mu sync.Mutex
	n := 0
	return reference.GeneratorFunc(func() reference.Reference {
		mu.Lock()
		defer mu.Unlock()
		n++
		return reference.Reference{
			No:        fmt.Sprintf("ref-%d", n),
			Timestamp: fmt.Sprintf("2026-01-01T00:00:0%dZ", n),
		}
	})
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (o *recordingObserver) ObserveTransaction(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		op += ":error"
	}
	o.ops = append(o.ops, op)
}

func newTestTx(h types.Handle, opts ...func(*Deps)) *Tx {
	deps := Deps{
		Executor:   retry.NewExecutor(retry.DefaultPolicy(), zap.NewNop(), retry.WithSleeper(noSleep)),
		References: sequenceRefs(),
		Logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return New(h, deps)
}

func TestTx_InitQueryCommit(t *testing.T) {
	h := mocks.NewFakeHandle().On("SELECT 1", &types.Result{
		Columns:  []string{"n"},
		Rows:     [][]any{{int64(1)}},
		RowCount: 1,
	})
	obs := &recordingObserver{}
	tx := newTestTx(h, func(d *Deps) { d.Observer = obs })
	ctx := context.Background()

	assert.Equal(t, types.TxUninitialized, tx.State())

	require.NoError(t, tx.Init(ctx))
	assert.Equal(t, types.TxActive, tx.State())

	res, err := tx.QueryOne(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowCount)

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, types.TxTerminated, tx.State())

	assert.Equal(t, []string{CommandBegin, "SELECT 1", CommandCommit}, h.SQLs())
	assert.Equal(t, []string{"begin", "query", "commit"}, obs.ops)
}

func TestTx_MetadataReflectsLastQuery(t *testing.T) {
	h := mocks.NewFakeHandle()
	tx := newTestTx(h)
	ctx := context.Background()

	meta := tx.Retrieve()
	assert.True(t, meta.Connection)
	assert.Empty(t, meta.ReferenceNo)
	assert.Empty(t, meta.Timestamp)

	require.NoError(t, tx.Init(ctx))
	_, err := tx.QueryOne(ctx, "S1")
	require.NoError(t, err)
	_, err = tx.QueryOne(ctx, "S2")
	require.NoError(t, err)

	meta = tx.Retrieve()
	assert.True(t, meta.Connection)
	assert.Equal(t, "ref-2", meta.ReferenceNo)
	assert.Equal(t, "2026-01-01T00:00:02Z", meta.Timestamp)
}

func TestTx_FailedQueryKeepsMetadata(t *testing.T) {
	h := mocks.NewFakeHandle().FailOn("BROKEN", errors.New("syntax error"))
	tx := newTestTx(h)
	ctx := context.Background()

	require.NoError(t, tx.Init(ctx))
	_, err := tx.QueryOne(ctx, "S1")
	require.NoError(t, err)

	_, err = tx.QueryOne(ctx, "BROKEN")
	require.Error(t, err)
	assert.Equal(t, types.ErrTransactionProtocol, types.GetErrorCode(err))
	assert.Equal(t, types.ErrDatabaseExecution, types.RootCode(err))

	assert.Equal(t, "ref-1", tx.Retrieve().ReferenceNo)
	// no automatic rollback
	assert.Equal(t, types.TxActive, tx.State())
	assert.NotContains(t, h.SQLs(), CommandRollback)
}

func TestTx_RollbackBeforeInitSendsNothing(t *testing.T) {
	h := mocks.NewFakeHandle()
	tx := newTestTx(h)

	tx.Rollback(context.Background())

	assert.Zero(t, h.CallCount())
	assert.Equal(t, types.TxTerminated, tx.State())
}

func TestTx_RollbackAfterInit(t *testing.T) {
	h := mocks.NewFakeHandle()
	obs := &recordingObserver{}
	tx := newTestTx(h, func(d *Deps) { d.Observer = obs })
	ctx := context.Background()

	require.NoError(t, tx.Init(ctx))
	tx.Rollback(ctx)

	assert.Equal(t, []string{CommandBegin, CommandRollback}, h.SQLs())
	assert.Equal(t, types.TxTerminated, tx.State())
	assert.Equal(t, []string{"begin", "rollback"}, obs.ops)
}

func TestTx_RollbackSwallowsErrors(t *testing.T) {
	h := mocks.NewFakeHandle().FailOn(CommandRollback, errors.New("connection reset"))
	obs := &recordingObserver{}
	tx := newTestTx(h, func(d *Deps) { d.Observer = obs })
	ctx := context.Background()

	require.NoError(t, tx.Init(ctx))
	assert.NotPanics(t, func() { tx.Rollback(ctx) })
	assert.Equal(t, types.TxTerminated, tx.State())
	assert.Equal(t, []string{"begin", "rollback:error"}, obs.ops)
}

func TestTx_NilHandle(t *testing.T) {
	var typedNil *mocks.FakeHandle
	for name, h := range map[string]types.Handle{"nil": nil, "typed nil": typedNil} {
		t.Run(name, func(t *testing.T) {
			tx := newTestTx(h)
			ctx := context.Background()

			assert.False(t, tx.Retrieve().Connection)

			err := tx.Init(ctx)
			require.Error(t, err)
			assert.Equal(t, types.ErrTransactionProtocol, types.GetErrorCode(err))
			assert.Equal(t, types.ErrConnectionUnavailable, types.RootCode(err))

			_, err = tx.QueryOne(ctx, "SELECT 1")
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.ErrConnectionUnavailable))

			err = tx.Commit(ctx)
			require.Error(t, err)
			assert.Equal(t, types.ErrTransactionProtocol, types.GetErrorCode(err))

			assert.NotPanics(t, func() { tx.Rollback(ctx) })
		})
	}
}

func TestTx_InitFailure(t *testing.T) {
	h := mocks.NewFakeHandle().FailOn(CommandBegin, errors.New("too many connections"))
	tx := newTestTx(h)

	err := tx.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrTransactionProtocol, types.GetErrorCode(err))
	assert.Equal(t, types.ErrDatabaseExecution, types.RootCode(err))
	assert.Equal(t, types.TxUninitialized, tx.State())

	tx.Rollback(context.Background())
	assert.Equal(t, []string{CommandBegin}, h.SQLs(), "no ROLLBACK for a BEGIN that failed")
	assert.Equal(t, types.TxTerminated, tx.State())
}

func TestTx_CommitWithoutInit(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "25P01", Message: "there is no transaction in progress"}
	h := mocks.NewFakeHandle().FailOn(CommandCommit, pgErr)
	tx := newTestTx(h)

	err := tx.Commit(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrTransactionProtocol, types.GetErrorCode(err))

	var target *pgconn.PgError
	require.ErrorAs(t, err, &target)
	assert.Same(t, pgErr, target)
	assert.Equal(t, []string{CommandCommit}, h.SQLs())
}

func TestTx_CommitTwiceResends(t *testing.T) {
	h := mocks.NewFakeHandle()
	tx := newTestTx(h)
	ctx := context.Background()

	require.NoError(t, tx.Init(ctx))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, []string{CommandBegin, CommandCommit, CommandCommit}, h.SQLs())
}

func TestTx_QueryRetriesConflict(t *testing.T) {
	deadlock := &pgconn.PgError{Code: retry.SQLStateDeadlockDetected, Message: "deadlock detected"}
	h := mocks.NewFakeHandle().FailTimes("UPDATE t SET n = n + 1", 2, deadlock)
	tx := newTestTx(h)
	ctx := context.Background()

	require.NoError(t, tx.Init(ctx))
	_, err := tx.QueryOne(ctx, "UPDATE t SET n = n + 1")
	require.NoError(t, err)

	assert.Equal(t, 3, countSQL(h.SQLs(), "UPDATE t SET n = n + 1"))
	assert.Equal(t, "ref-1", tx.Retrieve().ReferenceNo)
}

func TestTx_QueryConflictExhausted(t *testing.T) {
	deadlock := &pgconn.PgError{Code: retry.SQLStateSerializationFailure, Message: "could not serialize access"}
	h := mocks.NewFakeHandle().FailOn("UPDATE t", deadlock)
	tx := newTestTx(h)
	ctx := context.Background()

	require.NoError(t, tx.Init(ctx))
	_, err := tx.QueryOne(ctx, "UPDATE t")
	require.Error(t, err)

	assert.Equal(t, types.ErrTransactionProtocol, types.GetErrorCode(err))
	assert.Equal(t, types.ErrTransientConflict, types.RootCode(err))
	assert.Equal(t, retry.DefaultMaxAttempts, countSQL(h.SQLs(), "UPDATE t"))
}

func TestTx_QueryParallel(t *testing.T) {
	h := mocks.NewFakeHandle().
		On("A", &types.Result{RowCount: 1}).
		On("B", &types.Result{RowCount: 2})
	tx := newTestTx(h)
	ctx := context.Background()

	stmts, err := query.Batch([]string{"A", "B"}, [][]any{nil, {1}})
	require.NoError(t, err)

	require.NoError(t, tx.Init(ctx))
	out, err := tx.Query(ctx, stmts, query.Parallel())
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, 1, out.Results[0].RowCount)
	assert.Equal(t, 2, out.Results[1].RowCount)
}

func TestTx_QueryBeforeInitPermissive(t *testing.T) {
	h := mocks.NewFakeHandle()
	tx := newTestTx(h)

	_, err := tx.QueryOne(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1"}, h.SQLs())
	assert.Equal(t, types.TxUninitialized, tx.State())
}

func TestTx_StrictMode(t *testing.T) {
	h := mocks.NewFakeHandle()
	tx := newTestTx(h, func(d *Deps) { d.Strict = true })
	ctx := context.Background()

	_, err := tx.QueryOne(ctx, "SELECT 1")
	require.Error(t, err)
	assert.Equal(t, types.ErrTransactionProtocol, types.GetErrorCode(err))
	assert.Zero(t, h.CallCount())

	require.NoError(t, tx.Init(ctx))
	_, err = tx.QueryOne(ctx, "SELECT 1")
	require.NoError(t, err)

	require.NoError(t, tx.Commit(ctx))
	_, err = tx.QueryOne(ctx, "SELECT 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated")
}

func TestTx_ContextCanceledPassesThrough(t *testing.T) {
	h := mocks.NewFakeHandle().Delay("SLOW", time.Second)
	tx := newTestTx(h)

	require.NoError(t, tx.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tx.QueryOne(ctx, "SLOW")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func countSQL(sqls []string, sql string) int {
	n := 0
	for _, s := range sqls {
		if s == sql {
			n++
		}
	}
	return n
}
