package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the API token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 token and returns its claims. Expiry is enforced by the
// parser when present.
func ParseToken(tokenString string, secret []byte) (*Claims, Role, error) {
	if tokenString == "" {
		return nil, "", ErrMissingToken
	}
	if len(secret) == 0 {
		return nil, "", fmt.Errorf("%w: empty secret", ErrInvalidToken)
	}
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}
	return claims, role, nil
}

// IssueToken signs an HS256 token for subject with role.
func IssueToken(secret []byte, subject string, role Role, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: string(role), RegisteredClaims: claims})
	return token.SignedString(secret)
}
