package middleware

import (
	"net/http"
	"strings"
)

// CORS answers with the request origin when it is allow-listed and with
// defaultOrigin otherwise. Preflight requests end here with 200 and no body.
// API responses are never cached.
func CORS(allowedOrigins []string, defaultOrigin string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := defaultOrigin
			if reqOrigin := r.Header.Get("Origin"); reqOrigin != "" {
				if _, ok := allowed[reqOrigin]; ok {
					origin = reqOrigin
				}
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			h.Set("Access-Control-Max-Age", "86400")
			h.Set("Cache-Control", "no-cache")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
