// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试上下文与结果断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	testutil.RequireRows(t, res, []any{int64(1), "a"})
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/dbsession/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// RequireRows 断言结果的行与 RowCount 与期望一致
func RequireRows(t *testing.T, res *types.Result, want ...[]any) {
	t.Helper()

	require.NotNil(t, res, "result is nil")
	require.Len(t, res.Rows, len(want), "row count mismatch")
	require.Equal(t, len(want), res.RowCount, "RowCount mismatch")
	for i := range want {
		require.Equal(t, want[i], res.Rows[i], "row %d mismatch", i)
	}
}
