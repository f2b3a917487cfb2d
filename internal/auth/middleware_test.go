package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", mw, func(c *gin.Context) {
		judge, _ := JudgeFrom(c.Request.Context())
		c.String(http.StatusOK, judge)
	})
	return router
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func do(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestVerifierMiddleware(t *testing.T) {
	valid := jwt.RegisteredClaims{Subject: "judge-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	tests := []struct {
		name     string
		audience string
		token    string
		want     int
		body     string
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "valid", token: signToken(t, testSecret, valid), want: http.StatusOK, body: "judge-1"},
		{name: "wrong secret", token: signToken(t, "other", valid), want: http.StatusUnauthorized},
		{name: "expired", token: signToken(t, testSecret, jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}), want: http.StatusUnauthorized},
		{name: "no subject", token: signToken(t, testSecret, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}), want: http.StatusUnauthorized},
		{name: "wrong audience", audience: "cards", token: signToken(t, testSecret, valid), want: http.StatusUnauthorized},
		{name: "matching audience", audience: "cards", token: signToken(t, testSecret, jwt.RegisteredClaims{Subject: "judge-2", Audience: jwt.ClaimStrings{"cards"}}), want: http.StatusOK, body: "judge-2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(newRouter(NewVerifier(testSecret, tc.audience).Middleware()), tc.token)
			if resp.Code != tc.want {
				t.Fatalf("expected status %d, got %d (%s)", tc.want, resp.Code, resp.Body.String())
			}
			if tc.body != "" && resp.Body.String() != tc.body {
				t.Fatalf("expected judge %q, got %q", tc.body, resp.Body.String())
			}
		})
	}
}

func TestOptionalWithoutSecretAllowsAnonymous(t *testing.T) {
	resp := do(newRouter(Optional("", "")), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestOptionalWithSecretRequiresToken(t *testing.T) {
	resp := do(newRouter(Optional(testSecret, "")), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestVerifierJudgeErrors(t *testing.T) {
	v := NewVerifier(testSecret, "cards")
	valid := signToken(t, testSecret, jwt.RegisteredClaims{Subject: "judge-3", Audience: jwt.ClaimStrings{"cards"}})

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "empty", header: "", want: ErrMissingToken},
		{name: "basic scheme", header: "Basic abc", want: ErrMalformedHeader},
		{name: "blank token", header: "Bearer  ", want: ErrMissingToken},
		{name: "garbage", header: "Bearer not-a-jwt", want: ErrInvalidToken},
		{name: "no audience", header: "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{Subject: "x"}), want: ErrWrongAudience},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Judge(tc.header); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	judge, err := v.Judge("bearer " + valid)
	if err != nil || judge != "judge-3" {
		t.Fatalf("expected judge-3, got %q (%v)", judge, err)
	}
}

func TestNewVerifierBlankSecret(t *testing.T) {
	if NewVerifier("  ", "") != nil {
		t.Fatal("expected nil verifier for blank secret")
	}
}

func TestWithJudgeRoundTrip(t *testing.T) {
	ctx := WithJudge(context.Background(), "judge-4")
	if judge, ok := JudgeFrom(ctx); !ok || judge != "judge-4" {
		t.Fatalf("unexpected judge %q", judge)
	}
	if _, ok := JudgeFrom(WithJudge(context.Background(), "")); ok {
		t.Fatal("empty judge should not be stored")
	}
}
