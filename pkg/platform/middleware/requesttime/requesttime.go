// Package requesttime stamps each HTTP request with a single "now". Every
// timestamp written during the request (audit entries, acceptance records,
// updated_at columns) comes from this value, so a request never straddles a
// clock tick.
package requesttime

import (
	"net/http"
	"time"

	"domus/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores
// it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
