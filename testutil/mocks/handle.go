// FakeHandle 与 FakePool 是连接句柄与连接池的测试模拟实现。
//
// 支持按 SQL 固定结果、错误注入、按次失败与延迟模拟，并记录调用顺序。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/dbsession/types"
)

// --- FakeHandle ---

// Call 记录单次执行
type Call struct {
	SQL    string
	Params []any
}

// FakeHandle 是 types.Handle 的模拟实现
type FakeHandle struct {
	mu sync.Mutex

	calls    []Call
	results  map[string]*types.Result
	errs     map[string]error
	queued   map[string][]error
	delays   map[string]time.Duration
	execFunc func(ctx context.Context, sql string, params []any) (*types.Result, error)

	inFlight    int
	maxInFlight int
}

// NewFakeHandle 创建新的 FakeHandle
func NewFakeHandle() *FakeHandle {
	return &FakeHandle{
		results: make(map[string]*types.Result),
		errs:    make(map[string]error),
		queued:  make(map[string][]error),
		delays:  make(map[string]time.Duration),
	}
}

// On 为指定 SQL 设置固定结果
func (h *FakeHandle) On(sql string, result *types.Result) *FakeHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[sql] = result
	return h
}

// FailOn 指定 SQL 每次都返回 err
func (h *FakeHandle) FailOn(sql string, err error) *FakeHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs[sql] = err
	return h
}

// FailTimes 指定 SQL 的前 n 次执行返回 err
func (h *FakeHandle) FailTimes(sql string, n int, err error) *FakeHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < n; i++ {
		h.queued[sql] = append(h.queued[sql], err)
	}
	return h
}

// Delay 为指定 SQL 设置执行延迟
func (h *FakeHandle) Delay(sql string, d time.Duration) *FakeHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delays[sql] = d
	return h
}

// WithExecFunc 使用自定义执行函数，优先级最高
func (h *FakeHandle) WithExecFunc(fn func(ctx context.Context, sql string, params []any) (*types.Result, error)) *FakeHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.execFunc = fn
	return h
}

// Execute 实现 types.Handle
func (h *FakeHandle) Execute(ctx context.Context, sql string, params []any) (*types.Result, error) {
	h.mu.Lock()
	h.calls = append(h.calls, Call{SQL: sql, Params: params})
	h.inFlight++
	if h.inFlight > h.maxInFlight {
		h.maxInFlight = h.inFlight
	}
	fn := h.execFunc
	delay := h.delays[sql]
	var queuedErr error
	if q := h.queued[sql]; len(q) > 0 {
		queuedErr = q[0]
		h.queued[sql] = q[1:]
	}
	fixedErr := h.errs[sql]
	result := h.results[sql]
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.inFlight--
		h.mu.Unlock()
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if fn != nil {
		return fn(ctx, sql, params)
	}
	if queuedErr != nil {
		return nil, queuedErr
	}
	if fixedErr != nil {
		return nil, fixedErr
	}
	if result == nil {
		return &types.Result{}, nil
	}
	return result, nil
}

// Calls 返回调用记录副本
func (h *FakeHandle) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// SQLs 返回按调用顺序排列的 SQL
func (h *FakeHandle) SQLs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.calls))
	for _, c := range h.calls {
		out = append(out, c.SQL)
	}
	return out
}

// CallCount 返回调用次数
func (h *FakeHandle) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// MaxInFlight 返回观测到的最大并发执行数
func (h *FakeHandle) MaxInFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxInFlight
}

// --- FakePool ---

// ErrPoolExhausted 模拟连接池无可用连接
var ErrPoolExhausted = errors.New("pool exhausted")

// FakePool 是连接池的模拟实现
type FakePool struct {
	mu sync.Mutex

	handle     types.Handle
	acquireErr error
	acquired   int
	released   []types.Handle
	closed     int
}

// NewFakePool 创建每次都返回 handle 的 FakePool
func NewFakePool(handle types.Handle) *FakePool {
	return &FakePool{handle: handle}
}

// WithAcquireError 设置获取连接时返回的错误
func (p *FakePool) WithAcquireError(err error) *FakePool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquireErr = err
	return p
}

// Acquire 获取连接
func (p *FakePool) Acquire(ctx context.Context) (types.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.acquired++
	return p.handle, nil
}

// Release 归还连接
func (p *FakePool) Release(h types.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, h)
	return nil
}

// Close 关闭连接池
func (p *FakePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// Acquired 返回获取次数
func (p *FakePool) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Released 返回归还次数
func (p *FakePool) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.released)
}

// Closed 返回关闭次数
func (p *FakePool) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
