package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"contest-service/internal/app"
)

// Claims mirror what the external auth service puts in its access tokens.
// The subject is the user id in decimal.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService verifies bearer tokens issued by the external auth service.
// This service never issues tokens in production; IssueToken exists for
// tests and local tooling.
type AuthService struct {
	hmac []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{hmac: []byte(secret)}
}

func (a *AuthService) IssueToken(ident app.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name: ident.Name,
		Role: ident.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(ident.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (app.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	})
	if err != nil {
		return app.Identity{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return app.Identity{}, jwt.ErrTokenInvalidClaims
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return app.Identity{}, jwt.ErrTokenInvalidSubject
	}
	return app.Identity{UserID: userID, Name: claims.Name, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid bearer token and injects the
// caller identity into the request context.
func (a *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			return
		}
		ident, err := a.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), ident)))
	})
}

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

func withIdentity(ctx context.Context, ident app.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, ident)
}

func identityFrom(ctx context.Context) app.Identity {
	if v := ctx.Value(ctxKeyIdentity); v != nil {
		if ident, ok := v.(app.Identity); ok {
			return ident
		}
	}
	return app.Identity{}
}
