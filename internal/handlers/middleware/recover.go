package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/handlers/userctx"
)

type errorLogger interface {
	Error(msg string, args ...any)
}

// Recover turns handler panics into 500 response
func Recover(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l.Error(
					"panic while handling request",
					"panic", rec,
					"request_id", userctx.RequestID(r.Context()),
					"stack", string(debug.Stack()),
				)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
