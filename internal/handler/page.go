package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dukerupert/noteflow/internal/store"
)

type PageHandler struct {
	notes     *store.NoteStore
	templates *template.Template
	logger    *slog.Logger
}

func NewPageHandler(ns *store.NoteStore, logger *slog.Logger) *PageHandler {
	return &PageHandler{notes: ns, templates: parseTemplates(), logger: logger}
}

func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	render(w, h.logger, h.templates, http.StatusOK, "landing.html", map[string]any{
		"Identity": identityFrom(r),
	})
}

// Dashboard lists the caller's notes. The route guard has already turned
// anonymous callers away.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == nil {
		http.Redirect(w, r, SignInPath, http.StatusSeeOther)
		return
	}

	archived := r.URL.Query().Get("archived") == "true"
	notes, err := h.notes.ListByUser(r.Context(), identity.ID, archived)
	if err != nil {
		h.logger.Error("load dashboard", "user_id", identity.ID, "error", err)
		http.Error(w, "failed to load notes", http.StatusInternalServerError)
		return
	}

	render(w, h.logger, h.templates, http.StatusOK, "dashboard.html", map[string]any{
		"Identity": identity,
		"Notes":    notes,
		"Archived": archived,
	})
}

func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
