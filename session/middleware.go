package session

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/dbsession/internal/ctxkeys"
)

type sessionKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// Middleware gives every request its own Session. The connection is acquired
// lazily by the handler via InitializeConnection and released when the
// handler returns, panics included.
func Middleware(pool Pool, deps Deps) func(http.Handler) http.Handler {
	deps = deps.withDefaults()
	base := deps.Logger

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqDeps := deps
			if id, ok := ctxkeys.RequestID(r.Context()); ok {
				reqDeps.Logger = base.With(zap.String("request_id", id))
			}

			s := New(pool, reqDeps)
			defer func() {
				if err := s.ReleaseConnection(); err != nil {
					s.logger.Error("release at end of request failed",
						zap.String("path", r.URL.Path), zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
		})
	}
}
