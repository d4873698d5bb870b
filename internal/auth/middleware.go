package auth

import (
	"log"
	"net/http"
	"strings"
)

// Middleware validates bearer tokens and enforces the policy.
type Middleware struct {
	secret []byte
	policy Policy
	logger *log.Logger
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return &Middleware{secret: secret, policy: policy, logger: logger}
}

// Wrap applies authentication and role checks to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required, protected := m.policy.RequiredRole(r)
		if !protected {
			next.ServeHTTP(w, r)
			return
		}
		claims, role, err := ParseToken(bearer(r), m.secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !role.Allows(required) {
			m.logger.Printf("auth: forbidden subject=%s role=%s required=%s path=%s", claims.Subject, role, required, r.URL.Path)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), role, claims.Subject)))
	})
}

func bearer(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
