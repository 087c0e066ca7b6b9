package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yong-jelly/usemap-sub002/internal/httputil"
	"github.com/yong-jelly/usemap-sub002/internal/model"
)

const (
	testSecret = "test-secret"
	testUserID = "5f1c2b8e-7d4a-4c1e-9a6b-2f3d4e5a6b7c"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  testUserID,
		"role": "authenticated",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

// echoViewer writes the viewer id seen by the handler.
var echoViewer = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, _ := GetUserIDFromContext(r.Context())
	w.Write([]byte(id))
})

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestAuthMiddleware_ValidBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
	rec := httptest.NewRecorder()

	AuthMiddleware(testSecret)(echoViewer).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != testUserID {
		t.Errorf("viewer = %q, want %q", rec.Body.String(), testUserID)
	}
}

func TestAuthMiddleware_LowercasesSubject(t *testing.T) {
	claims := validClaims()
	claims["sub"] = strings.ToUpper(testUserID)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
	rec := httptest.NewRecorder()

	AuthMiddleware(testSecret)(echoViewer).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != testUserID {
		t.Errorf("viewer = %q, want %q", rec.Body.String(), testUserID)
	}
}

func TestAuthMiddleware_CookieFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: signToken(t, testSecret, validClaims())})
	rec := httptest.NewRecorder()

	AuthMiddleware(testSecret)(echoViewer).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != testUserID {
		t.Errorf("status=%d viewer=%q, want 200 %q", rec.Code, rec.Body.String(), testUserID)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noSub := validClaims()
	delete(noSub, "sub")

	anonKey := validClaims()
	anonKey["sub"] = "anon"

	noExp := validClaims()
	delete(noExp, "exp")

	cases := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing", "", httputil.ErrCodeUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, expired), model.CodeTokenExpired},
		{"wrong secret", "Bearer " + signToken(t, "other", validClaims()), model.CodeTokenInvalid},
		{"no subject", "Bearer " + signToken(t, testSecret, noSub), model.CodeTokenInvalid},
		{"non-uuid subject", "Bearer " + signToken(t, testSecret, anonKey), model.CodeTokenInvalid},
		{"no expiry", "Bearer " + signToken(t, testSecret, noExp), model.CodeTokenInvalid},
		{"garbage", "Bearer not.a.token", model.CodeTokenInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(testSecret)(echoViewer).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if code := errorCode(t, rec); code != tc.wantCode {
				t.Errorf("code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	handler := OptionalAuthMiddleware(testSecret)(echoViewer)

	// Anonymous passes through
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "" {
		t.Errorf("anonymous: status=%d viewer=%q", rec.Code, rec.Body.String())
	}

	// Invalid token is ignored, not rejected
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "" {
		t.Errorf("bad token: status=%d viewer=%q", rec.Code, rec.Body.String())
	}

	// Valid token attaches the viewer
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Body.String() != testUserID {
		t.Errorf("valid token: viewer=%q, want %q", rec.Body.String(), testUserID)
	}
}
