package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func respond(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondError(c, err)
	return w
}

func TestRespondErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ErrAuthenticationRequired, http.StatusUnauthorized, "authentication_required"},
		{ErrNotFound, http.StatusNotFound, "not_found"},
		{ErrNotEnrolled, http.StatusForbidden, "not_enrolled"},
		{ErrVideosIncomplete, http.StatusUnprocessableEntity, "videos_incomplete"},
		{ErrMaxAttemptsReached, http.StatusUnprocessableEntity, "max_attempts_reached"},
		{fmt.Errorf("submit: %w", ErrAlreadySubmitted), http.StatusConflict, "already_submitted"},
	}

	for _, tc := range cases {
		w := respond(tc.err)
		if w.Code != tc.status {
			t.Fatalf("%v: status %d, want %d", tc.err, w.Code, tc.status)
		}
		var body Response
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != tc.code {
			t.Fatalf("%v: error code %q, want %q", tc.err, body.Error, tc.code)
		}
	}
}

func TestRespondErrorStorageFailureIsRetryable(t *testing.T) {
	w := respond(errors.New("dial tcp: connection refused"))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "retryable" {
		t.Fatalf("expected retryable, got %q", body.Error)
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(fmt.Errorf("wrap: %w", ErrNotEnrolled)) {
		t.Fatal("wrapped domain error not recognised")
	}
	if IsDomainError(errors.New("disk full")) {
		t.Fatal("storage error classified as domain error")
	}
}
