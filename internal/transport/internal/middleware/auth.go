// Package middleware provides HTTP middleware for the transport layer.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jamesprial/pocketbase-mcp/internal/transport/transportcore"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// authMiddleware implements transportcore.AuthMiddleware with HS256 JWTs.
type authMiddleware struct {
	secret    []byte
	responder transportcore.ErrorResponder
	parser    *jwt.Parser
}

// NewAuthMiddleware creates bearer-token middleware that accepts HS256 JWTs
// signed with secret and carrying a non-empty sub claim.
func NewAuthMiddleware(secret []byte, responder transportcore.ErrorResponder) transportcore.AuthMiddleware {
	if len(secret) == 0 {
		panic("secret cannot be empty")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}

	return &authMiddleware{
		secret:    secret,
		responder: responder,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Authenticate validates the Bearer token and stores its subject in the
// request context for downstream handlers.
func (m *authMiddleware) Authenticate() transportcore.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				m.responder.Unauthorized(w, err)
				return
			}

			subject, err := m.verify(token)
			if err != nil {
				m.responder.Unauthorized(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(transportcore.ContextWithSubject(r.Context(), subject)))
		})
	}
}

func (m *authMiddleware) verify(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := m.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", transportcore.ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", transportcore.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub", transportcore.ErrInvalidToken)
	}
	return claims.Subject, nil
}

// extractBearerToken extracts the Bearer token from the Authorization header.
// Tokens in query strings are not accepted.
//
// Format: Authorization: Bearer <token>
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get(api.HeaderAuthorization)
	if authHeader == "" {
		return "", transportcore.ErrMissingToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return "", transportcore.ErrInvalidToken
	}

	// Scheme is case-insensitive per RFC 6750.
	if !strings.EqualFold(parts[0], api.BearerToken) {
		return "", transportcore.ErrInvalidToken
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", transportcore.ErrMissingToken
	}

	return token, nil
}
