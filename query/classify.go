package query

import (
	"context"
	"errors"

	"github.com/BaSui01/dbsession/retry"
	"github.com/BaSui01/dbsession/types"
)

// Classify tags a raw handle error with its kind. Errors that already carry a
// kind and context errors are returned unchanged. The driver error stays
// reachable through Unwrap.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := types.AsError(err); ok {
		return err
	}

	state := retry.SQLState(err)
	if retry.IsConflict(err) {
		return types.NewError(types.ErrTransientConflict, "transient conflict").
			WithCause(err).
			WithRetryable(true).
			WithSQLState(state)
	}
	return types.NewError(types.ErrDatabaseExecution, "statement failed").
		WithCause(err).
		WithSQLState(state)
}
