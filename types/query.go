package types

import (
	"context"
	"reflect"
)

// Handle is a single checked-out connection. It runs one statement with
// positional parameters and returns the fully read result.
//
// A Handle is owned by the session that acquired it. Everything else only
// borrows it and must never release it.
type Handle interface {
	Execute(ctx context.Context, sql string, params []any) (*Result, error)
}

// Statement is one SQL statement with its positional parameters.
type Statement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// Options controls how a batch of statements is executed.
type Options struct {
	// Parallel dispatches all statements concurrently on the same handle.
	// Statements must not depend on each other in this mode.
	Parallel bool `json:"parallel"`
}

// Result is the row set and metadata of one executed statement.
type Result struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

// Maps returns the rows keyed by column name.
func (r *Result) Maps() []map[string]any {
	if r == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// Outcome is either a single result or one result per input statement,
// in input order.
type Outcome struct {
	Single  *Result   `json:"single,omitempty"`
	Results []*Result `json:"results,omitempty"`
	Multi   bool      `json:"multi"`
}

// All returns the results as a slice regardless of shape.
func (o *Outcome) All() []*Result {
	if o == nil {
		return nil
	}
	if o.Multi {
		return o.Results
	}
	if o.Single == nil {
		return nil
	}
	return []*Result{o.Single}
}

// IsNilHandle reports whether h is nil or wraps a nil pointer.
func IsNilHandle(h Handle) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}
