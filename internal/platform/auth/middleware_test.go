package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func runJWT(t *testing.T, authHeader string) (int64, string, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var uid int64
	var role string
	next := func(c echo.Context) error {
		ctx := c.Request().Context()
		uid = UserIDFromContext(ctx)
		role = RoleFromContext(ctx)
		return nil
	}

	mw := JWTMiddleware(JWTConfig{SigningKey: testKey})
	return uid, role, mw(next)(c)
}

func TestJWTMiddlewareValidToken(t *testing.T) {
	token := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: 42,
		Role:   RoleDoctor,
	})

	uid, role, err := runJWT(t, "Bearer "+token)
	if err != nil {
		t.Fatalf("middleware rejected valid token: %v", err)
	}
	if uid != 42 || role != RoleDoctor {
		t.Fatalf("context identity = %d/%s, want 42/doctor", uid, role)
	}
}

func TestJWTMiddlewareRejectsMissingUserID(t *testing.T) {
	token := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RolePatient,
	})

	_, _, err := runJWT(t, "Bearer "+token)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 for token without uid", err)
	}
}

func TestJWTMiddlewareRejectsExpiredAndGarbage(t *testing.T) {
	expired := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		UserID: 42,
	})

	for _, header := range []string{"", "Bearer not.a.token", "Bearer " + expired, "Basic abc"} {
		_, _, err := runJWT(t, header)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusUnauthorized {
			t.Errorf("header %q: err = %v, want 401", header, err)
		}
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-User-ID", "7")
	req.Header.Set("X-Dev-Role", RolePatient)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var uid int64
	var role string
	next := func(c echo.Context) error {
		ctx := c.Request().Context()
		uid = UserIDFromContext(ctx)
		role = RoleFromContext(ctx)
		return nil
	}
	if err := DevAuthMiddleware()(next)(c); err != nil {
		t.Fatalf("dev middleware: %v", err)
	}
	if uid != 7 || role != RolePatient {
		t.Fatalf("identity = %d/%s, want 7/patient", uid, role)
	}
}
