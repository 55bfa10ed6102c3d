package httpapi

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"maintscan/internal/response"
)

type contextKey string

const ctxActor contextKey = "actor"

// actorFrom returns the authenticated actor name for audit attribution.
func actorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(ctxActor).(string); ok && actor != "" {
		return actor
	}
	return "counter"
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// requireKey checks the bearer token against the configured keyring and
// stores the actor name in the request context. WebSocket clients pass the
// token as a query parameter since browsers cannot set headers there.
func (h *Handler) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || h.Keyring.Open() {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("token")
		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		actor, ok := h.Keyring.Verify(token)
		if !ok {
			response.Err(w, "unauthorized", 401)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxActor, actor)))
	})
}
