package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"loomgraph/internal/httputil"
	"loomgraph/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserUIDKey is the context key for the authenticated user's UID
	UserUIDKey contextKey = "user_uid"
)

// AuthMiddleware creates a middleware that validates JWT tokens.
// Checks Authorization header first (for mobile), then falls back to cookie (for web).
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			userUID, err := parseUserUID(tokenString, jwtSecret)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
					return
				}
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			ctx := context.WithValue(r.Context(), UserUIDKey, userUID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches the user UID when a valid token is
// present and lets the request through anonymously otherwise. Used on
// public read endpoints that enrich responses for logged-in viewers.
func OptionalAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString != "" {
				if userUID, err := parseUserUID(tokenString, jwtSecret); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), UserUIDKey, userUID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken pulls the bearer token from the Authorization header or
// the access_token cookie.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	cookie, err := r.Cookie("access_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// parseUserUID validates the token and returns the user UID claim.
func parseUserUID(tokenString, jwtSecret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	userUID, ok := claims["user_id"].(string)
	if !ok || userUID == "" {
		// Older tokens only carry the subject.
		userUID, ok = claims["sub"].(string)
		if !ok || userUID == "" {
			return "", jwt.ErrTokenInvalidClaims
		}
	}
	return userUID, nil
}

// GetUserUIDFromContext extracts the user UID from the request context.
// Returns the UID and true if found, or "" and false if not found.
func GetUserUIDFromContext(ctx context.Context) (string, bool) {
	userUID, ok := ctx.Value(UserUIDKey).(string)
	return userUID, ok
}
