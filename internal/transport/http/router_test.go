package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yong-jelly/usemap-sub002/internal/handler"
	"github.com/yong-jelly/usemap-sub002/internal/model"
	"github.com/yong-jelly/usemap-sub002/internal/transport/http/middleware"
)

const (
	testSecret = "router-test-secret"
	testUserID = "6f1c2a3e-1b4d-4c1a-9a57-1f0e6b1f2a01"
)

// echoService answers every call and remembers the last viewer it saw.
type echoService struct {
	lastViewer string
}

func (s *echoService) List(ctx context.Context, placeID, viewerID string, limit, offset int) (*model.CommentThreadResponse, error) {
	s.lastViewer = viewerID
	return &model.CommentThreadResponse{Comments: []model.Comment{}}, nil
}

func (s *echoService) Create(ctx context.Context, placeID, viewerID string, req model.CreateCommentRequest) (*model.Comment, error) {
	s.lastViewer = viewerID
	return &model.Comment{ID: "c-1", BusinessID: placeID, Content: req.Content}, nil
}

func (s *echoService) Update(ctx context.Context, commentID, viewerID string, req model.UpdateCommentRequest) (*model.Comment, error) {
	s.lastViewer = viewerID
	return &model.Comment{ID: commentID, Content: req.Content}, nil
}

func (s *echoService) Deactivate(ctx context.Context, commentID, viewerID string) (*model.DeactivateResponse, error) {
	s.lastViewer = viewerID
	return &model.DeactivateResponse{Removed: 1}, nil
}

func (s *echoService) ToggleLike(ctx context.Context, commentID, viewerID string) (*model.LikeResponse, error) {
	s.lastViewer = viewerID
	return &model.LikeResponse{CommentID: commentID, IsLiked: true}, nil
}

func (s *echoService) Count(ctx context.Context, placeID string) (*model.CommentCountResponse, error) {
	return &model.CommentCountResponse{BusinessID: placeID}, nil
}

func signToken(t *testing.T) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  testUserID,
		"role": "authenticated",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestRouter(svc *echoService, limiter *middleware.RateLimiter) http.Handler {
	return NewRouter(RouterConfig{
		CommentHandler: handler.NewCommentHandler(svc),
		MediaHandler:   handler.NewMediaHandler(nil),
		JWTSecret:      testSecret,
		RateLimiter:    limiter,
	})
}

func serve(h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(&echoService{}, nil)

	if rec := serve(router, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}

	rec := serve(router, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `route="/health"`) {
		t.Errorf("metrics should label requests by route pattern, got:\n%s", body)
	}
}

func TestRouter_ListIsPublicButPersonalized(t *testing.T) {
	svc := &echoService{}
	router := newTestRouter(svc, nil)

	if rec := serve(router, http.MethodGet, "/places/1234567890/comments", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("anonymous list status = %d, want 200", rec.Code)
	}
	if svc.lastViewer != "" {
		t.Errorf("anonymous viewer = %q, want empty", svc.lastViewer)
	}

	if rec := serve(router, http.MethodGet, "/places/1234567890/comments", signToken(t), ""); rec.Code != http.StatusOK {
		t.Fatalf("signed-in list status = %d, want 200", rec.Code)
	}
	if svc.lastViewer != testUserID {
		t.Errorf("viewer = %q, want %q", svc.lastViewer, testUserID)
	}

	// A broken token on a public route is treated as anonymous.
	if rec := serve(router, http.MethodGet, "/places/1234567890/comments", "garbage", ""); rec.Code != http.StatusOK {
		t.Errorf("bad-token list status = %d, want 200", rec.Code)
	}
}

func TestRouter_WritesRequireAuth(t *testing.T) {
	router := newTestRouter(&echoService{}, nil)
	commentPath := "/comments/a0000000-0000-4000-8000-000000000001"

	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/places/1234567890/comments"},
		{http.MethodPost, "/places/1234567890/comments/attachments"},
		{http.MethodPatch, commentPath},
		{http.MethodDelete, commentPath},
		{http.MethodPost, commentPath + "/like"},
	} {
		rec := serve(router, tc.method, tc.target, "", `{"content":"x"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.target, rec.Code)
		}
	}
}

func TestRouter_AuthenticatedWrites(t *testing.T) {
	svc := &echoService{}
	router := newTestRouter(svc, nil)
	token := signToken(t)
	commentPath := "/comments/a0000000-0000-4000-8000-000000000001"

	if rec := serve(router, http.MethodPost, "/places/1234567890/comments", token, `{"content":"hi"}`); rec.Code != http.StatusCreated {
		t.Errorf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(router, http.MethodPatch, commentPath, token, `{"content":"edited"}`); rec.Code != http.StatusOK {
		t.Errorf("update status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(router, http.MethodPost, commentPath+"/like", token, ""); rec.Code != http.StatusOK {
		t.Errorf("like status = %d, want 200", rec.Code)
	}
	if rec := serve(router, http.MethodDelete, commentPath, token, ""); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d, want 200", rec.Code)
	}
	if svc.lastViewer != testUserID {
		t.Errorf("viewer = %q, want %q", svc.lastViewer, testUserID)
	}
}

func TestRouter_RateLimitsWrites(t *testing.T) {
	router := newTestRouter(&echoService{}, middleware.NewRateLimiter(0.001, 1))
	token := signToken(t)

	first := serve(router, http.MethodPost, "/places/1234567890/comments", token, `{"content":"one"}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}
	second := serve(router, http.MethodPost, "/places/1234567890/comments", token, `{"content":"two"}`)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}

	// Reads are not limited.
	for i := 0; i < 3; i++ {
		if rec := serve(router, http.MethodGet, "/places/1234567890/comments", token, ""); rec.Code != http.StatusOK {
			t.Errorf("read %d status = %d, want 200", i, rec.Code)
		}
	}
}
