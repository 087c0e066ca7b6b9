package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yong-jelly/usemap-sub002/internal/httputil"
	"github.com/yong-jelly/usemap-sub002/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user's ID
	UserIDKey contextKey = "user_id"
)

// supabaseClaims are the parts of a Supabase access token used here.
type supabaseClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware rejects requests without a valid Supabase access token.
// Checks Authorization header first (for mobile), then falls back to cookie (for web)
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			viewer, err := parseViewer(tokenString, jwtSecret)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
					return
				}
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, viewer.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches the viewer when a valid token is present
// and lets the request through anonymously otherwise.
func OptionalAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString != "" {
				if viewer, err := parseViewer(tokenString, jwtSecret); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), UserIDKey, viewer.ID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserIDFromContext extracts the user ID from the request context
// Returns the user ID and true if found, or "" and false if not found
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func extractToken(r *http.Request) string {
	// Expected format: "Bearer <token>"
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// parseViewer validates an HS256 Supabase token and returns its subject.
// Tokens whose subject is not a UUID (service or anon keys) are rejected.
func parseViewer(tokenString, jwtSecret string) (*model.Viewer, error) {
	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" {
		return nil, model.ErrMissingSubject
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, model.ErrInvalidID
	}

	// Canonical lowercase form, as Postgres returns user ids.
	return &model.Viewer{ID: id.String(), Role: claims.Role}, nil
}
