package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/noteflow/internal/access"
	"github.com/dukerupert/noteflow/internal/apperror"
	"github.com/dukerupert/noteflow/internal/model"
	"github.com/dukerupert/noteflow/internal/store"
	"github.com/dukerupert/noteflow/internal/websocket"
)

type NoteHandler struct {
	notes  *store.NoteStore
	access *access.Controller
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewNoteHandler(ns *store.NoteStore, hub *websocket.Hub, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		notes:  ns,
		access: access.NewController(ns),
		hub:    hub,
		logger: logger,
	}
}

func (h *NoteHandler) publish(ownerID, action, id string) {
	if h.hub != nil {
		h.hub.Publish(ownerID, websocket.NewMessage("note", action, id))
	}
}

type noteRequest struct {
	Title      string  `json:"title"`
	Content    *string `json:"content"`
	IsArchived *bool   `json:"isArchived"`
}

func (req *noteRequest) validate() error {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	return nil
}

func (req *noteRequest) content() string {
	if req.Content == nil {
		return ""
	}
	return *req.Content
}

// List returns the caller's notes, or the archived ones with ?archived=true.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == nil {
		writeError(w, h.logger, apperror.Unauthenticated())
		return
	}

	archived := r.URL.Query().Get("archived") == "true"
	notes, err := h.notes.ListByUser(r.Context(), identity.ID, archived)
	if err != nil {
		writeError(w, h.logger, apperror.Wrap(err, "list notes"))
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == nil {
		writeError(w, h.logger, apperror.Unauthenticated())
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	note, err := h.notes.Create(r.Context(), identity.ID, req.Title, req.content())
	if err != nil {
		writeError(w, h.logger, apperror.Wrap(err, "create note"))
		return
	}

	h.publish(identity.ID, "created", note.ID)
	writeJSON(w, http.StatusCreated, note)
}

// load resolves the {id} note for op, answering the request itself on failure.
func (h *NoteHandler) load(w http.ResponseWriter, r *http.Request, op access.Op) (*model.Identity, *model.Note, bool) {
	identity := identityFrom(r)
	note, err := h.access.Note(r.Context(), op, identity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return nil, nil, false
	}
	return identity, note, true
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, note, ok := h.load(w, r, access.Read)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Update replaces title and content. A missing content clears it.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, note, ok := h.load(w, r, access.Update)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.notes.Update(r.Context(), note.ID, req.Title, req.content(), req.IsArchived)
	if err != nil {
		writeError(w, h.logger, apperror.Wrap(err, "update note"))
		return
	}
	if updated == nil {
		writeError(w, h.logger, apperror.Missing("note"))
		return
	}

	h.publish(identity.ID, "updated", updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

// Archive toggles the archived flag.
func (h *NoteHandler) Archive(w http.ResponseWriter, r *http.Request) {
	identity, note, ok := h.load(w, r, access.Update)
	if !ok {
		return
	}

	updated, err := h.notes.SetArchived(r.Context(), note.ID, !note.IsArchived)
	if err != nil {
		writeError(w, h.logger, apperror.Wrap(err, "archive note"))
		return
	}
	if updated == nil {
		writeError(w, h.logger, apperror.Missing("note"))
		return
	}

	h.publish(identity.ID, "archived", updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, note, ok := h.load(w, r, access.Delete)
	if !ok {
		return
	}

	if err := h.notes.Delete(r.Context(), note.ID); err != nil {
		writeError(w, h.logger, apperror.Wrap(err, "delete note"))
		return
	}

	h.publish(identity.ID, "deleted", note.ID)
	w.WriteHeader(http.StatusNoContent)
}
