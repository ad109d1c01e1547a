package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/noteflow/internal/apperror"
	"github.com/dukerupert/noteflow/internal/auth"
	"github.com/dukerupert/noteflow/internal/model"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.Validation, apperror.InvalidToken, apperror.ExpiredToken:
		return http.StatusBadRequest
	case apperror.Unauthorized:
		return http.StatusUnauthorized
	case apperror.Forbidden:
		return http.StatusForbidden
	case apperror.NotFound:
		return http.StatusNotFound
	case apperror.Conflict:
		return http.StatusConflict
	case apperror.Delivery:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err into a status code and a structured body.
// Internal errors are logged and answered with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperror.KindOf(err)
	status := statusFor(kind)
	if status >= 500 {
		logger.Error("request failed", "error", err)
	}

	resp := ErrorResponse{Error: kind.String(), Message: apperror.Message(err)}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		resp.Field = ae.Field
	}
	// token failures are never told apart to the caller
	if kind == apperror.ExpiredToken {
		resp.Error = apperror.InvalidToken.String()
		resp.Message = apperror.TokenInvalid().Message
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body of at most 1 MiB into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("", "request body too large")
		}
		return apperror.ValidationFailed("", "invalid JSON")
	}
	return nil
}

func identityFrom(r *http.Request) *model.Identity {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return nil
	}
	return &id
}
