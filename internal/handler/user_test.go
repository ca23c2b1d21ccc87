package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/userd/userd/internal/handler/dto"
	"github.com/userd/userd/internal/model"
	"github.com/userd/userd/internal/repository"
	"github.com/userd/userd/internal/repository/memory"
	"github.com/userd/userd/internal/service"
)

var testTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newUserRouter(svc UserService, logger *slog.Logger) http.Handler {
	h := NewUserHandler(svc, logger)
	r := chi.NewRouter()
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
	})
	return r
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New(memory.WithClock(func() time.Time { return testTime }))
	return newUserRouter(service.NewUserService(store, logger), logger)
}

func assertUser(t *testing.T, got, want dto.UserResponse) {
	t.Helper()
	if got.ID != want.ID || got.Name != want.Name || got.Email != want.Email || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("user = %+v, want %+v", got, want)
	}
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUserHandler_CreateGetList(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/users", `{"name":"John Doe","email":"john@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var created dto.UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := dto.UserResponse{ID: 1, Name: "John Doe", Email: "john@example.com", CreatedAt: testTime}
	assertUser(t, created, want)

	rec = doRequest(router, http.MethodGet, "/users/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected status 200, got %d", rec.Code)
	}
	var found dto.UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&found); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	assertUser(t, found, want)

	rec = doRequest(router, http.MethodGet, "/users", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected status 200, got %d", rec.Code)
	}
	var list []dto.UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 user, got %d", len(list))
	}
	assertUser(t, list[0], want)

	rec = doRequest(router, http.MethodGet, "/users/2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing: expected status 404, got %d", rec.Code)
	}
}

func TestUserHandler_JSONShape(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/users", `{"name":"John Doe","email":"john@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	got := strings.TrimSpace(rec.Body.String())
	want := `{"id":1,"name":"John Doe","email":"john@example.com","created_at":"2026-01-15T12:00:00Z"}`
	if got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestUserHandler_ListEmpty(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/users", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty JSON array, got %s", body)
	}
}

func TestUserHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"name":`, "INVALID_JSON"},
		{"wrong type", `{"name":42}`, "INVALID_JSON"},
		{"missing name", `{"email":"john@example.com"}`, "INVALID_USER"},
		{"blank name", `{"name":"  ","email":"john@example.com"}`, "INVALID_USER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t)

			rec := doRequest(router, http.MethodPost, "/users", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}

			var response dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", response.Code, tt.wantCode)
			}
		})
	}
}

func TestUserHandler_GetInvalidID(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/users/abc", "/users/-1", "/users/1.5", "/users/18446744073709551616"} {
		rec := doRequest(router, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, rec.Code)
		}
	}
}

// failingService returns a storage error for every call.
type failingService struct{}

var errStorage = repository.NewStorageError("test", repository.OpFindUser, errors.New("secret connection detail"))

func (failingService) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	return nil, errStorage
}

func (failingService) GetUser(ctx context.Context, id uint64) (*model.User, error) {
	return nil, errStorage
}

func (failingService) ListUsers(ctx context.Context) ([]model.User, error) {
	return nil, errStorage
}

func TestUserHandler_StorageErrorIsOpaque(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	router := newUserRouter(failingService{}, logger)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/users", `{"name":"x"}`},
		{http.MethodGet, "/users/1", ""},
		{http.MethodGet, "/users", ""},
	}

	for _, tt := range tests {
		rec := doRequest(router, tt.method, tt.path, tt.body)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: expected status 500, got %d", tt.method, tt.path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "secret connection detail") {
			t.Errorf("%s %s: response leaks storage detail: %s", tt.method, tt.path, rec.Body.String())
		}

		var response dto.ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Code != "INTERNAL_ERROR" {
			t.Errorf("code = %s, want INTERNAL_ERROR", response.Code)
		}
	}

	if !strings.Contains(logs.String(), "secret connection detail") {
		t.Error("storage error should be logged server-side")
	}
}
