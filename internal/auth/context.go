package auth

import "context"

type contextKey string

const (
	contextKeyRole    contextKey = "auth.role"
	contextKeySubject contextKey = "auth.subject"
)

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, contextKeyRole, role)
	return context.WithValue(ctx, contextKeySubject, subject)
}

// RoleFromContext returns the caller role, or "" for anonymous requests.
func RoleFromContext(ctx context.Context) Role {
	role, _ := ctx.Value(contextKeyRole).(Role)
	return role
}

// SubjectFromContext returns the token subject.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(contextKeySubject).(string)
	return subject
}
