package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DevUser is the identity used for unauthenticated requests when no signing
// secret is configured in development.
const DevUser = "dev"

type ctxKey int

const userKey ctxKey = iota

// UserID returns the authenticated user for the request context.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// WithUserID attaches an authenticated user id to ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userKey, id)
}

// Authenticator verifies HS256 bearer tokens whose subject is the user id.
type Authenticator struct {
	secret   []byte
	issuer   string
	allowDev bool
	now      func() time.Time
}

func NewAuthenticator(secret, issuer string, allowDev bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, allowDev: allowDev, now: time.Now}
}

// Issue mints a token for userID valid for ttl.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("auth: no signing secret configured")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify returns the subject of a valid token.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return a.secret, nil })
	if err != nil {
		return "", err
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return "", errors.New("auth: unexpected issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			if !a.allowDev {
				writeError(w, r, &apiError{code: http.StatusUnauthorized, msg: "authentication is not configured"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), DevUser)))
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="antygravity"`)
			writeError(w, r, &apiError{code: http.StatusUnauthorized, msg: "missing bearer token"})
			return
		}
		sub, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, r, &apiError{code: http.StatusUnauthorized, msg: "invalid bearer token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
	})
}
