package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// GenericErrorDetails replaces error details in production
const GenericErrorDetails = "An unexpected error occurred."

// Recoverer turns a panic into the standard 500 payload
func Recoverer(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil || rec == http.ErrAbortHandler {
					if rec != nil {
						panic(rec)
					}
					return
				}
				log.Error().
					Str("panic", fmt.Sprint(rec)).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				details := fmt.Sprint(rec)
				if production {
					details = GenericErrorDetails
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "Internal server error",
					"details": details,
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
