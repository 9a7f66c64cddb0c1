package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/internal/database"
)

// HealthChecker 由连接池实现
type HealthChecker interface {
	Ping(ctx context.Context) error
	GetStats() database.PoolStats
}

// HealthResponse 是 /health 的响应体
type HealthResponse struct {
	Status string             `json:"status"`
	Error  string             `json:"error,omitempty"`
	Pool   database.PoolStats `json:"pool"`
}

const healthTimeout = 3 * time.Second

// HealthHandler ping 数据库并返回连接池统计，失败时返回 503
func HealthHandler(checker HealthChecker, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := HealthResponse{Status: "ok"}
		code := http.StatusOK
		if err := checker.Ping(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			resp.Status = "unavailable"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
		resp.Pool = checker.GetStats()

		writeJSON(w, code, resp)
	}
}

// NewMux 注册 /health 与 /metrics，gatherer 为 nil 时使用默认注册表
func NewMux(checker HealthChecker, gatherer prometheus.Gatherer, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /health", HealthHandler(checker, logger))
	if gatherer == nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	} else {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
