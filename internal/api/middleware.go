package api

import (
	"context"
	"net/http"
	"strconv"
)

type ctxKey int

const managementKey ctxKey = iota

// markManagement flags requests carrying a true value in header as coming
// from an event manager. The header must be set by the gateway in front of
// the API, which also strips it from client requests. An empty header name
// disables management access over HTTP.
func markManagement(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header != "" {
				if ok, _ := strconv.ParseBool(r.Header.Get(header)); ok {
					r = r.WithContext(context.WithValue(r.Context(), managementKey, true))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isManagement(ctx context.Context) bool {
	ok, _ := ctx.Value(managementKey).(bool)
	return ok
}
