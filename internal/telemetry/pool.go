package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/dbsession/internal/database"
)

// MeterName 是 dbsession 注册 OTel 仪表时使用的 instrumentation scope
const MeterName = "github.com/BaSui01/dbsession"

var (
	stateUsed = metric.WithAttributes(attribute.String("state", "used"))
	stateIdle = metric.WithAttributes(attribute.String("state", "idle"))
)

// RegisterPoolMetrics 以可观测仪表导出连接池统计，每次采集时调用 stats。
// 返回的 Registration 需在连接池关闭时 Unregister。
func RegisterPoolMetrics(meter metric.Meter, stats func() database.PoolStats) (metric.Registration, error) {
	usage, err := meter.Int64ObservableUpDownCounter("db.client.connections.usage",
		metric.WithDescription("Connections currently in the pool, by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create connections.usage: %w", err)
	}

	maxOpen, err := meter.Int64ObservableUpDownCounter("db.client.connections.max",
		metric.WithDescription("Maximum number of open connections allowed"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create connections.max: %w", err)
	}

	waits, err := meter.Int64ObservableCounter("db.client.connections.wait_count",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create connections.wait_count: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(usage, int64(s.InUse), stateUsed)
		o.ObserveInt64(usage, int64(s.Idle), stateIdle)
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, usage, maxOpen, waits)
}
