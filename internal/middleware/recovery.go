package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/linkgate/linkgate/internal/model"
)

// Recoverer turns a panicking handler into a 500 with the standard error
// envelope.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("panic_recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, model.ErrInternal)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
