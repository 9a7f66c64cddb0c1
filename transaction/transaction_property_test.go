package transaction

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/BaSui01/dbsession/testutil/mocks"
	"github.com/BaSui01/dbsession/types"
)

// Metadata always carries the reference generated for the last successful query.
func TestProperty_MetadataTracksLastSuccess(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		outcomes := rapid.SliceOfN(rapid.Bool(), 1, 20).Draw(rt, "outcomes")

		h := mocks.NewFakeHandle()
		for i, ok := range outcomes {
			if !ok {
				h.FailOn(fmt.Sprintf("S%d", i), fmt.Errorf("failure %d", i))
			}
		}
		tx := newTestTx(h)
		ctx := context.Background()
		if err := tx.Init(ctx); err != nil {
			rt.Fatalf("init: %v", err)
		}

		successes := 0
		for i, ok := range outcomes {
			_, err := tx.QueryOne(ctx, fmt.Sprintf("S%d", i))
			if ok != (err == nil) {
				rt.Fatalf("statement %d: want success=%v, got err=%v", i, ok, err)
			}
			if ok {
				successes++
			}
		}

		meta := tx.Retrieve()
		if successes == 0 {
			if meta.ReferenceNo != "" {
				rt.Fatalf("reference set without any successful query: %q", meta.ReferenceNo)
			}
			return
		}
		if want := fmt.Sprintf("ref-%d", successes); meta.ReferenceNo != want {
			rt.Fatalf("reference = %q, want %q", meta.ReferenceNo, want)
		}
	})
}

// Rollback sends a command only after Init succeeded and always terminates.
func TestProperty_RollbackOnlyAfterInit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		initFirst := rapid.Bool().Draw(rt, "init")
		rollbacks := rapid.IntRange(1, 5).Draw(rt, "rollbacks")

		h := mocks.NewFakeHandle()
		tx := newTestTx(h)
		ctx := context.Background()
		if initFirst {
			_ = tx.Init(ctx)
		}
		for i := 0; i < rollbacks; i++ {
			tx.Rollback(ctx)
		}

		got := countSQL(h.SQLs(), CommandRollback)
		want := 0
		if initFirst {
			want = rollbacks
		}
		if got != want {
			rt.Fatalf("rollback commands = %d, want %d", got, want)
		}
		if tx.State() != types.TxTerminated {
			rt.Fatalf("state = %s, want terminated", tx.State())
		}
	})
}
