package app

import (
	"bytes"
	"context"
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/service"
	"course_lms_backend/internal/testutil"
	"course_lms_backend/internal/util"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type stubGateway struct{}

func (stubGateway) CreateTransaction(ctx context.Context, req service.CheckoutRequest) (string, string, error) {
	return "token-" + req.OrderID, "https://pay.example/" + req.OrderID, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Port: "0", Mode: "test"},
		JWT:       config.JWTConfig{Secret: "router-test-secret", ExpireTime: time.Hour},
		Storage:   config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		RateLimit: config.RateLimitConfig{MaxRequests: 10000, WindowMinutes: 1},
		Payment:   config.PaymentConfig{ServerKey: "router-server-key", Currency: "INR", TaxRate: 0.18},
	}
	return build(cfg, testutil.DB(t), nil, stubGateway{})
}

func do(a *App, method, path, token string, body interface{}) (*httptest.ResponseRecorder, util.Response) {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	var resp util.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func login(t *testing.T, a *App, email string) string {
	t.Helper()
	w, _ := do(a, "POST", "/api/register", "", map[string]string{
		"name": "Student", "email": email, "password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	w, resp := do(a, "POST", "/api/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	data, _ := resp.Data.(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %s", w.Body.String())
	}
	return token
}

func TestRoutesGuardPaidContent(t *testing.T) {
	a := newTestApp(t)
	course := testutil.CreateCourse(t, a.DB, "go-basics", 499,
		testutil.DaySpec{DayNumber: 1, IsFree: true, Videos: []testutil.VideoSpec{{Duration: 600}}},
		testutil.DaySpec{DayNumber: 2, Videos: []testutil.VideoSpec{{Duration: 300}}},
	)
	freeVideo := course.Days[0].Videos[0].ID
	paidVideo := course.Days[1].Videos[0].ID

	if w, _ := do(a, "GET", "/api/courses/go-basics/outline", "", nil); w.Code != http.StatusOK {
		t.Fatalf("anonymous outline: %d", w.Code)
	}
	if w, _ := do(a, "GET", "/api/courses/missing/outline", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown slug: %d", w.Code)
	}

	w, resp := do(a, "GET", fmt.Sprintf("/api/videos/%d", paidVideo), "", nil)
	if w.Code != http.StatusUnauthorized || resp.Error != "authentication_required" {
		t.Fatalf("anonymous paid video: %d %s", w.Code, w.Body.String())
	}

	if w, _ := do(a, "POST", fmt.Sprintf("/api/videos/%d/progress", freeVideo), "", map[string]interface{}{"watchedSeconds": 10}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous progress: %d", w.Code)
	}

	token := login(t, a, "router@example.com")

	w, resp = do(a, "GET", fmt.Sprintf("/api/videos/%d", paidVideo), token, nil)
	if w.Code != http.StatusForbidden || resp.Error != "not_enrolled" {
		t.Fatalf("paid video without entitlement: %d %s", w.Code, w.Body.String())
	}

	w, _ = do(a, "POST", fmt.Sprintf("/api/videos/%d/progress", freeVideo), token, map[string]interface{}{"watchedSeconds": 600})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"firstCompletion":true`) {
		t.Fatalf("free video progress: %d %s", w.Code, w.Body.String())
	}

	w, resp = do(a, "POST", fmt.Sprintf("/api/videos/%d/progress", paidVideo), token, map[string]interface{}{"watchedSeconds": 10})
	if w.Code != http.StatusForbidden || resp.Error != "not_enrolled" {
		t.Fatalf("paid video progress: %d %s", w.Code, w.Body.String())
	}

	w, resp = do(a, "POST", "/api/courses/go-basics/enroll", token, nil)
	if w.Code != http.StatusForbidden || resp.Error != "paid_course" {
		t.Fatalf("enroll paid course: %d %s", w.Code, w.Body.String())
	}

	w, _ = do(a, "POST", "/api/courses/go-basics/checkout", token, nil)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "https://pay.example/") {
		t.Fatalf("checkout: %d %s", w.Code, w.Body.String())
	}
}

func TestProgressClampsReportedPercentage(t *testing.T) {
	a := newTestApp(t)
	course := testutil.CreateCourse(t, a.DB, "no-duration", 0,
		testutil.DaySpec{DayNumber: 1, IsFree: true, Videos: []testutil.VideoSpec{{Duration: 0}, {Duration: 0}}},
	)
	token := login(t, a, "clamp@example.com")

	w, _ := do(a, "POST", fmt.Sprintf("/api/videos/%d/progress", course.Days[0].Videos[0].ID), token,
		map[string]interface{}{"watchedPercentage": 120})
	if w.Code != http.StatusOK ||
		!strings.Contains(w.Body.String(), `"watchedPercentage":100`) ||
		!strings.Contains(w.Body.String(), `"isCompleted":true`) {
		t.Fatalf("percentage above 100: %d %s", w.Code, w.Body.String())
	}

	w, _ = do(a, "POST", fmt.Sprintf("/api/videos/%d/progress", course.Days[0].Videos[1].ID), token,
		map[string]interface{}{"watchedPercentage": -5})
	if w.Code != http.StatusOK ||
		!strings.Contains(w.Body.String(), `"watchedPercentage":0`) ||
		!strings.Contains(w.Body.String(), `"isCompleted":false`) {
		t.Fatalf("negative percentage: %d %s", w.Code, w.Body.String())
	}

	w, resp := do(a, "POST", fmt.Sprintf("/api/videos/%d/progress", course.Days[0].Videos[1].ID), token,
		map[string]interface{}{"watchedSeconds": -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative seconds: %d %+v", w.Code, resp)
	}
}

func TestCategoryAndReviewRoutes(t *testing.T) {
	a := newTestApp(t)
	category := &model.CourseCategory{Name: "Backend", Slug: "backend", IsActive: true}
	if err := a.DB.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	course := testutil.CreateCourse(t, a.DB, "free-go", 0,
		testutil.DaySpec{DayNumber: 1, Videos: []testutil.VideoSpec{{Duration: 60}}},
	)
	a.DB.Model(course).Update("category_id", category.ID)
	testutil.CreateCourse(t, a.DB, "other", 100)

	w, _ := do(a, "GET", "/api/courses?category=backend", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"slug":"free-go"`) ||
		strings.Contains(w.Body.String(), `"slug":"other"`) || !strings.Contains(w.Body.String(), `"allCoursesCount":2`) {
		t.Fatalf("category filter: %d %s", w.Code, w.Body.String())
	}
	if w, _ := do(a, "GET", "/api/categories/missing/courses", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown category: %d", w.Code)
	}

	if w, _ := do(a, "POST", "/api/courses/free-go/reviews", "", map[string]interface{}{"rating": 5}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous review: %d", w.Code)
	}
	token := login(t, a, "reviewer@example.com")
	w, resp := do(a, "POST", "/api/courses/free-go/reviews", token, map[string]interface{}{"rating": 5, "comment": "clear"})
	if w.Code != http.StatusForbidden || resp.Error != "not_enrolled" {
		t.Fatalf("review without enrollment: %d %s", w.Code, w.Body.String())
	}
	if w, _ := do(a, "POST", "/api/courses/free-go/enroll", token, nil); w.Code != http.StatusCreated && w.Code != http.StatusOK {
		t.Fatalf("enroll: %d", w.Code)
	}
	w, resp = do(a, "POST", "/api/courses/free-go/reviews", token, map[string]interface{}{"rating": 9})
	if w.Code != http.StatusUnprocessableEntity || resp.Error != "invalid_rating" {
		t.Fatalf("invalid rating: %d %s", w.Code, w.Body.String())
	}
	if w, _ := do(a, "POST", "/api/courses/free-go/reviews", token, map[string]interface{}{"rating": 4, "comment": "clear"}); w.Code != http.StatusCreated {
		t.Fatalf("review: %d %s", w.Code, w.Body.String())
	}

	w, _ = do(a, "GET", "/api/courses/free-go", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"averageRating":4`) {
		t.Fatalf("course detail reviews: %d %s", w.Code, w.Body.String())
	}
}

func TestPaymentNotificationRejectsForgedSignature(t *testing.T) {
	a := newTestApp(t)
	w, resp := do(a, "POST", "/api/payments/notifications", "", service.PaymentNotification{
		OrderID:           "ORD-unknown",
		StatusCode:        "200",
		GrossAmount:       "589.00",
		SignatureKey:      "forged",
		TransactionStatus: "settlement",
	})
	if w.Code != http.StatusUnauthorized || resp.Error != "invalid_signature" {
		t.Fatalf("forged notification: %d %s", w.Code, w.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t)
	if w, _ := do(a, "GET", "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	w, _ := do(a, "GET", "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "lms_http_requests_total") {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestWatchSessionStreamsProgress(t *testing.T) {
	a := newTestApp(t)
	course := testutil.CreateCourse(t, a.DB, "ws-course", 499,
		testutil.DaySpec{DayNumber: 1, IsFree: true, Videos: []testutil.VideoSpec{{Duration: 600}}},
		testutil.DaySpec{DayNumber: 2, Videos: []testutil.VideoSpec{{Duration: 300}}},
	)
	token := login(t, a, "ws@example.com")

	srv := httptest.NewServer(a.Router)
	defer srv.Close()
	wsURL := func(videoID uint) string {
		return fmt.Sprintf("ws%s/api/videos/%d/watch?token=%s", strings.TrimPrefix(srv.URL, "http"), videoID, token)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(course.Days[1].Videos[0].ID), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("paid video handshake should be refused, got err=%v resp=%v", err, resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(course.Days[0].Videos[0].ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	exchange := func(msg service.WatchMessage) service.WatchReply {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var reply service.WatchReply
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		return reply
	}

	reply := exchange(service.WatchMessage{Type: "progress", WatchedSeconds: 300})
	if reply.Type != "progress" || reply.Data == nil || reply.Data.Progress.WatchedPercentage != 50 || reply.Data.FirstCompletion {
		t.Fatalf("unexpected progress reply %+v", reply)
	}

	reply = exchange(service.WatchMessage{Type: "rewind"})
	if reply.Type != "error" || reply.Error != "bad_request" {
		t.Fatalf("unknown type should be rejected, got %+v", reply)
	}

	reply = exchange(service.WatchMessage{Type: "complete"})
	if reply.Type != "progress" || reply.Data == nil || !reply.Data.FirstCompletion {
		t.Fatalf("expected first completion, got %+v", reply)
	}
}
