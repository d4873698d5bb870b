package auth

import (
	"net/http"
	"strings"
)

// Policy maps requests to the role they require.
type Policy struct {
	public map[string]struct{}
	prefix string
}

// NewPolicy protects every path under prefix; public paths skip auth.
func NewPolicy(prefix string, public ...string) Policy {
	set := make(map[string]struct{}, len(public))
	for _, path := range public {
		set[path] = struct{}{}
	}
	return Policy{public: set, prefix: prefix}
}

// RequiredRole returns the role needed for r, or false when r is public.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if _, ok := p.public[r.URL.Path]; ok {
		return "", false
	}
	if !strings.HasPrefix(r.URL.Path, p.prefix) {
		return "", false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer, true
	default:
		return RoleOperator, true
	}
}
