// Package query runs statements on a single checked-out connection.
//
// A Runner executes one statement, or a batch either strictly in order or
// concurrently on the same handle, and returns results in input order. Raw
// driver errors are classified once (see Classify) so that the retry
// executor and the transaction layer can match on the error kind.
//
// Runner.Execute is meant to be the unit of work handed to retry.Run: a
// transient conflict at any point re-runs the whole batch.
package query
