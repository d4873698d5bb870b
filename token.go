package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"agro-simulator/internal/auth"
)

// runToken prints an HS256 API token signed with AUTH_JWT_SECRET.
func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	subject := fs.String("sub", "operator", "token subject")
	roleName := fs.String("role", string(auth.RoleOperator), "viewer|operator|admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(stderr, "AUTH_JWT_SECRET is not set")
		return 1
	}
	role, ok := auth.ParseRole(*roleName)
	if !ok {
		fmt.Fprintf(stderr, "unknown role %q\n", *roleName)
		return 2
	}
	now := time.Now()
	token, err := auth.IssueToken([]byte(secret), *subject, role, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
	})
	if err != nil {
		fmt.Fprintf(stderr, "sign token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}
