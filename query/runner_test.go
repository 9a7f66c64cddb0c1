package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/retry"
	"github.com/BaSui01/dbsession/testutil/mocks"
	"github.com/BaSui01/dbsession/types"
)

type statementObserver struct {
	count  int
	failed int
}

func (o *statementObserver) ObserveStatement(_ bool, _ time.Duration, err error) {
	o.count++
	if err != nil {
		o.failed++
	}
}

func TestRunner_SingleStatement(t *testing.T) {
	h := mocks.NewFakeHandle().On("SELECT 1", &types.Result{
		Columns:  []string{"?column?"},
		Rows:     [][]any{{int64(1)}},
		RowCount: 1,
	})
	r := NewRunner(zap.NewNop())

	out, err := r.Execute(context.Background(), h, Single("SELECT 1"), types.Options{})
	require.NoError(t, err)

	assert.False(t, out.Multi)
	require.NotNil(t, out.Single)
	assert.Equal(t, 1, out.Single.RowCount)
	assert.Equal(t, 1, h.CallCount())
}

func TestRunner_SingleStatementPassesParams(t *testing.T) {
	h := mocks.NewFakeHandle()
	r := NewRunner(zap.NewNop())

	_, err := r.Execute(context.Background(), h, Single("SELECT * FROM users WHERE id = $1", 42), types.Options{})
	require.NoError(t, err)

	calls := h.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []any{42}, calls[0].Params)
}

func TestRunner_NilHandle(t *testing.T) {
	r := NewRunner(zap.NewNop())

	_, err := r.Execute(context.Background(), nil, Single("SELECT 1"), types.Options{})
	assert.Equal(t, types.ErrConnectionUnavailable, types.GetErrorCode(err))

	var typedNil *mocks.FakeHandle
	_, err = r.Execute(context.Background(), typedNil, Single("SELECT 1"), types.Options{})
	assert.Equal(t, types.ErrConnectionUnavailable, types.GetErrorCode(err))
}

func TestRunner_NoStatements(t *testing.T) {
	h := mocks.NewFakeHandle()
	r := NewRunner(zap.NewNop())

	_, err := r.Execute(context.Background(), h, nil, types.Options{})
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	assert.Zero(t, h.CallCount())
}

func TestBatch_Mismatch(t *testing.T) {
	stmts, err := Batch([]string{"SELECT 1", "SELECT 2"}, [][]any{{}})
	assert.Nil(t, stmts)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "mismatched statements and parameters")

	_, err = Batch([]string{"SELECT 1", "SELECT 2"}, nil)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
}

func TestBatch_Pairs(t *testing.T) {
	stmts, err := Batch([]string{"INSERT INTO a VALUES ($1)", "SELECT 1"}, [][]any{{1}, nil})
	require.NoError(t, err)
	assert.Equal(t, []types.Statement{
		{SQL: "INSERT INTO a VALUES ($1)", Params: []any{1}},
		{SQL: "SELECT 1"},
	}, stmts)
}

func TestRunner_SequentialOrder(t *testing.T) {
	h := mocks.NewFakeHandle().
		On("S1", &types.Result{RowCount: 1}).
		On("S2", &types.Result{RowCount: 2}).
		On("S3", &types.Result{RowCount: 3})
	r := NewRunner(zap.NewNop())

	stmts, err := Batch([]string{"S1", "S2", "S3"}, [][]any{nil, nil, nil})
	require.NoError(t, err)

	out, err := r.Execute(context.Background(), h, stmts, types.Options{})
	require.NoError(t, err)

	assert.True(t, out.Multi)
	require.Len(t, out.Results, 3)
	for i, res := range out.Results {
		assert.Equal(t, i+1, res.RowCount)
	}
	assert.Equal(t, []string{"S1", "S2", "S3"}, h.SQLs())
	assert.Equal(t, 1, h.MaxInFlight())
}

func TestRunner_SequentialStopsAtFailure(t *testing.T) {
	s2Err := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	h := mocks.NewFakeHandle().FailOn("S2", s2Err)
	obs := &statementObserver{}
	r := NewRunner(zap.NewNop(), WithObserver(obs))

	stmts, _ := Batch([]string{"S1", "S2", "S3"}, [][]any{nil, nil, nil})
	out, err := r.Execute(context.Background(), h, stmts, types.Options{})

	assert.Nil(t, out)
	assert.Equal(t, []string{"S1", "S2"}, h.SQLs())
	assert.Equal(t, types.ErrDatabaseExecution, types.GetErrorCode(err))

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Same(t, s2Err, pgErr)

	e, _ := types.AsError(err)
	assert.Equal(t, "23505", e.SQLState)
	assert.Equal(t, 2, obs.count)
	assert.Equal(t, 1, obs.failed)
}

func TestRunner_ParallelResultsInInputOrder(t *testing.T) {
	h := mocks.NewFakeHandle().
		On("S1", &types.Result{RowCount: 1}).
		On("S2", &types.Result{RowCount: 2}).
		Delay("S1", 30*time.Millisecond).
		Delay("S2", 10*time.Millisecond)
	r := NewRunner(zap.NewNop())

	stmts, _ := Batch([]string{"S1", "S2"}, [][]any{nil, nil})
	out, err := r.Execute(context.Background(), h, stmts, Parallel())
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	assert.Equal(t, 1, out.Results[0].RowCount)
	assert.Equal(t, 2, out.Results[1].RowCount)
	assert.Equal(t, 2, h.MaxInFlight(), "两条语句应同时在途")
}

func TestRunner_ParallelFailure(t *testing.T) {
	h := mocks.NewFakeHandle().
		FailOn("S2", errors.New("syntax error at or near")).
		Delay("S1", 10*time.Millisecond)
	r := NewRunner(zap.NewNop())

	stmts, _ := Batch([]string{"S1", "S2", "S3"}, [][]any{nil, nil, nil})
	out, err := r.Execute(context.Background(), h, stmts, Parallel())

	assert.Nil(t, out)
	assert.Equal(t, types.ErrDatabaseExecution, types.GetErrorCode(err))
	assert.Equal(t, 3, h.CallCount(), "失败不应中止其他已发出的语句")
}

func TestRunner_ParallelLimit(t *testing.T) {
	h := mocks.NewFakeHandle()
	sqls := make([]string, 6)
	params := make([][]any, 6)
	for i := range sqls {
		sqls[i] = fmt.Sprintf("S%d", i)
		h.Delay(sqls[i], 5*time.Millisecond)
	}
	r := NewRunner(zap.NewNop(), WithMaxParallel(2))

	stmts, _ := Batch(sqls, params)
	_, err := r.Execute(context.Background(), h, stmts, Parallel())
	require.NoError(t, err)
	assert.LessOrEqual(t, h.MaxInFlight(), 2)
	assert.Equal(t, 6, h.CallCount())
}

func TestRunner_ConflictClassified(t *testing.T) {
	h := mocks.NewFakeHandle().FailOn("UPDATE t SET v = 1", &pgconn.PgError{Code: "40001"})
	r := NewRunner(zap.NewNop())

	_, err := r.Execute(context.Background(), h, Single("UPDATE t SET v = 1"), types.Options{})
	assert.Equal(t, types.ErrTransientConflict, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.True(t, retry.IsConflict(err))
}

func TestRunner_WholeBatchRetried(t *testing.T) {
	h := mocks.NewFakeHandle().FailTimes("S2", 2, &pgconn.PgError{Code: "40P01"})
	r := NewRunner(zap.NewNop())
	e := retry.NewExecutor(retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, zap.NewNop())

	stmts, _ := Batch([]string{"S1", "S2"}, [][]any{nil, nil})
	out, err := retry.Run(context.Background(), e, func(ctx context.Context) (*types.Outcome, error) {
		return r.Execute(ctx, h, stmts, types.Options{})
	})

	require.NoError(t, err)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, []string{"S1", "S2", "S1", "S2", "S1", "S2"}, h.SQLs())
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))
	assert.Equal(t, context.Canceled, Classify(context.Canceled))

	tagged := types.NewConfigurationError("bad shape")
	assert.Same(t, tagged, Classify(tagged))

	err := Classify(errors.New("pq: deadlock detected"))
	assert.Equal(t, types.ErrTransientConflict, types.GetErrorCode(err))

	err = Classify(errors.New("relation \"nope\" does not exist"))
	assert.Equal(t, types.ErrDatabaseExecution, types.GetErrorCode(err))
	assert.False(t, types.IsRetryable(err))
}
