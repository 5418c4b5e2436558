package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inovalupa/govtech-analyzer/internal/session"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	sessionStateKey
)

const TokenTTL = 24 * time.Hour

// Claims carried by the session token.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token for sid/userID.
func IssueToken(secret []byte, sid, userID string, now time.Time) (string, error) {
	claims := Claims{
		SessionID: sid,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates the signature and expiry of a session token.
func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.SessionID == "" || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// JWTMiddleware validates the Authorization header and attaches the live
// session to the request context. Tokens whose session was closed are rejected.
func JWTMiddleware(secret []byte, sessions *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing or invalid token", http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			st, ok := sessions.Get(claims.SessionID)
			if !ok || st.User.ID != claims.UserID {
				http.Error(w, "session expired", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims.SessionID, st)))
		})
	}
}

// RequireAdmin rejects sessions whose user is not an administrator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, ok := SessionState(r.Context())
		if !ok || !st.User.IsAdmin() {
			http.Error(w, "admin only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionID returns the id attached by JWTMiddleware.
func SessionID(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok
}

// SessionState returns the session snapshot taken when the request arrived.
func SessionState(ctx context.Context) (session.State, bool) {
	st, ok := ctx.Value(sessionStateKey).(session.State)
	return st, ok
}

// WithSession attaches a session to ctx the way JWTMiddleware does.
func WithSession(ctx context.Context, sid string, st session.State) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sid)
	return context.WithValue(ctx, sessionStateKey, st)
}
