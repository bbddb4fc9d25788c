package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mind-engage/mindengage-completion/internal/rbac"
)

// Verifier checks bearer tokens minted by the platform's identity service.
// This service never issues tokens.
type Verifier struct {
	hmac   []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{hmac: []byte(secret), issuer: issuer}
}

type Claims struct {
	Role string `json:"role"` // student|instructor|service|admin
	jwt.RegisteredClaims
}

func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.hmac, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if c.Subject == "" || c.Role == "" {
		return nil, errors.New("token missing sub or role")
	}
	return c, nil
}

// JWTMiddleware puts the caller's subject and role on the request context.
func JWTMiddleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := v.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithSubject(r.Context(), c.Subject)
			ctx = rbac.WithRole(ctx, c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
