package query

import (
	"fmt"

	"github.com/BaSui01/dbsession/types"
)

// Single builds a one-statement request.
func Single(sql string, params ...any) []types.Statement {
	return []types.Statement{{SQL: sql, Params: params}}
}

// Batch pairs statements with parameter sets. Every statement needs exactly
// one parameter set, possibly empty.
func Batch(sqls []string, params [][]any) ([]types.Statement, error) {
	if len(sqls) != len(params) {
		return nil, types.NewConfigurationError(fmt.Sprintf(
			"mismatched statements and parameters: %d statements, %d parameter sets", len(sqls), len(params)))
	}
	stmts := make([]types.Statement, len(sqls))
	for i := range sqls {
		stmts[i] = types.Statement{SQL: sqls[i], Params: params[i]}
	}
	return stmts, nil
}

// Parallel returns Options with parallel dispatch enabled.
func Parallel() types.Options {
	return types.Options{Parallel: true}
}
