package middleware

import (
	"net/http"
)

// NoStore sets strict no-cache headers on every response. Entitlement and
// invoice state changes immediately after a purchase; a cached snapshot
// would show a stale balance.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}
