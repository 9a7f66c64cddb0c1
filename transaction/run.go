package transaction

import "context"

// Run executes fn inside t: Init, fn, Commit. Any failure or panic after
// Init triggers Rollback; panics are re-raised.
func Run(ctx context.Context, t *Tx, fn func(ctx context.Context, t *Tx) error) error {
	if err := t.Init(ctx); err != nil {
		t.Rollback(ctx)
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			t.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.Rollback(ctx)
		return err
	}

	if err := t.Commit(ctx); err != nil {
		t.Rollback(ctx)
		return err
	}
	return nil
}
