package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/noteflow/internal/apperror"
	"github.com/dukerupert/noteflow/internal/auth"
	"github.com/dukerupert/noteflow/internal/store"
)

type UserHandler struct {
	users    *store.UserStore
	sessions *auth.SessionManager
	logger   *slog.Logger
}

func NewUserHandler(users *store.UserStore, sessions *auth.SessionManager, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, sessions: sessions, logger: logger}
}

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Create registers a user. A second registration of the same email is a
// conflict and leaves the first record unchanged.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	addr := auth.NormalizeEmail(req.Email)
	if addr == "" {
		writeError(w, h.logger, apperror.ValidationFailed("email", "email is required"))
		return
	}
	if !auth.ValidEmail(addr) {
		writeError(w, h.logger, apperror.ValidationFailed("email", "email is invalid"))
		return
	}

	user, err := h.users.Create(r.Context(), addr, strings.TrimSpace(req.Name))
	if errors.Is(err, store.ErrDuplicateEmail) {
		writeError(w, h.logger, apperror.Duplicate("user", "email"))
		return
	}
	if err != nil {
		writeError(w, h.logger, apperror.Wrap(err, "create user"))
		return
	}

	h.logger.Info("user created", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

type updateMeRequest struct {
	Name string `json:"name"`
}

// UpdateMe sets the caller's display name and re-issues the session so the
// new name shows up in its claims.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == nil {
		writeError(w, h.logger, apperror.Unauthenticated())
		return
	}

	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, h.logger, apperror.ValidationFailed("name", "name is required"))
		return
	}

	user, err := h.users.UpdateName(r.Context(), identity.ID, name)
	if err != nil {
		writeError(w, h.logger, apperror.Wrap(err, "update user"))
		return
	}
	if user == nil {
		writeError(w, h.logger, apperror.Missing("user"))
		return
	}

	if _, err := h.sessions.Issue(w, user); err != nil {
		writeError(w, h.logger, apperror.Wrap(err, "reissue session"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}
