package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/userd/userd/internal/handler/dto"
	"github.com/userd/userd/internal/middleware"
	"github.com/userd/userd/internal/model"
	"github.com/userd/userd/internal/service"
)

// UserService is the subset of service.UserService used by UserHandler.
type UserService interface {
	CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error)
	GetUser(ctx context.Context, id uint64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// UserHandler handles HTTP requests for user operations.
type UserHandler struct {
	svc    UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	user, err := h.svc.CreateUser(r.Context(), req.ToModel())
	if err != nil {
		h.handleServiceError(w, r, "create user", err)
		return
	}

	h.logger.Info("user_created",
		"user_id", user.ID,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "User ID must be a positive integer")
		return
	}

	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, "fetch user", err)
		return
	}
	if user == nil {
		h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.handleServiceError(w, r, "list users", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserListResponse(users))
}

// handleServiceError maps service errors to HTTP responses.
// Storage detail is logged, never returned to the client.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, model.ErrNameRequired):
		h.writeError(w, http.StatusBadRequest, "INVALID_USER", "Name is required")
	default:
		h.logger.Error("internal_error",
			"action", action,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action)
	}
}

// writeError writes an error response.
func (h *UserHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

var _ UserService = (*service.UserService)(nil)
