package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth returns a handler that requires a valid Bearer token before
// delegating to next. An empty token disables the check, which is how the
// demo backend runs. Responds with 401 if the header is missing or wrong.
func Auth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
