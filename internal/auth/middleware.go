// Package auth identifies the judge submitting a contest from an HS256
// bearer token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken    = errors.New("authorization header required")
	ErrMalformedHeader = errors.New("invalid authorization header")
	ErrInvalidToken    = errors.New("invalid token")
	ErrWrongAudience   = errors.New("invalid audience")
	ErrMissingJudge    = errors.New("missing subject")
)

type judgeKey struct{}

// WithJudge returns a copy of ctx carrying the judge identity.
func WithJudge(ctx context.Context, judge string) context.Context {
	if judge == "" {
		return ctx
	}
	return context.WithValue(ctx, judgeKey{}, judge)
}

// JudgeFrom returns the judge stored by the middleware, if any.
func JudgeFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	judge, ok := ctx.Value(judgeKey{}).(string)
	return judge, ok && judge != ""
}

// Verifier checks contest tokens. The token subject is the judge.
type Verifier struct {
	secret   []byte
	audience string
}

// NewVerifier returns nil when secret is blank, which disables auth.
func NewVerifier(secret, audience string) *Verifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret), audience: strings.TrimSpace(audience)}
}

// Judge validates an Authorization header value and returns the token subject.
func (v *Verifier) Judge(header string) (string, error) {
	raw, err := bearerToken(header)
	if err != nil {
		return "", err
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if v.audience != "" && !containsAudience(claims.Audience, v.audience) {
		return "", ErrWrongAudience
	}
	if claims.Subject == "" {
		return "", ErrMissingJudge
	}
	return claims.Subject, nil
}

// Optional requires a judge token when secret is set and lets every request
// through otherwise.
func Optional(secret, audience string) gin.HandlerFunc {
	v := NewVerifier(secret, audience)
	if v == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return v.Middleware()
}

// Middleware rejects requests without a valid judge token with 401.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		judge, err := v.Judge(c.Request.Header.Get("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Request = c.Request.WithContext(WithJudge(c.Request.Context(), judge))
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMalformedHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func containsAudience(claims jwt.ClaimStrings, expected string) bool {
	for _, aud := range claims {
		if aud == expected {
			return true
		}
	}
	return false
}
