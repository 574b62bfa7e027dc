package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const userIDKey ctxKey = "sudoku.userID"

// WithUserID stores the authenticated user ID in context.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches the user ID from context. ok is false for guests.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// parseBearer extracts and verifies the subject of a Bearer token.
func parseBearer(r *http.Request, signKey []byte) (uuid.UUID, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return uuid.Nil, errors.New("no authorization header")
	}
	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return uuid.Nil, errors.New("not a bearer token")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return signKey, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromString(claims.Subject)
}

// Identify resolves the caller's identity into the request context.
// Requests without a valid token proceed as guests; handlers that
// require identity reject them individually.
func Identify(signKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := parseBearer(r, signKey); err == nil {
				r = r.WithContext(WithUserID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
