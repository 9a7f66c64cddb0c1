package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/BaSui01/dbsession/types"
)

// Conn 是绑定单个物理连接的句柄，实现 types.Handle。
//
// 同一连接上的语句在协议层面只能串行执行，因此每条语句在持锁期间
// 完成查询并读完全部结果行，并行分发的语句在此处排队。
type Conn struct {
	mu   sync.Mutex
	conn *sql.Conn
}

func newConn(conn *sql.Conn) *Conn {
	return &Conn{conn: conn}
}

// Execute 执行一条语句并读取全部结果
func (c *Conn) Execute(ctx context.Context, query string, params []any) (*types.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &types.Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// Close 将连接归还 database/sql 连接池
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// normalizeValue 将驱动返回的 []byte 转为 string
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
