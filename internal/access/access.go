// Package access enforces per-note ownership. Every read, update and delete
// of a note by id goes through Controller.Note.
package access

import (
	"context"

	"github.com/dukerupert/noteflow/internal/apperror"
	"github.com/dukerupert/noteflow/internal/model"
)

type Op string

const (
	Read   Op = "read"
	Update Op = "update"
	Delete Op = "delete"
)

// Authorize decides whether identity may perform op on note. A nil identity
// fails with Unauthorized before the note is looked at, a nil note fails with
// NotFound, and a note owned by someone else fails with Forbidden.
func Authorize(op Op, identity *model.Identity, note *model.Note) error {
	if identity == nil || identity.ID == "" {
		return apperror.Unauthenticated()
	}
	if note == nil {
		return apperror.Missing("note")
	}
	if note.UserID != identity.ID {
		return apperror.NotOwner("note")
	}
	return nil
}

type NoteGetter interface {
	GetByID(ctx context.Context, id string) (*model.Note, error)
}

type Controller struct {
	notes NoteGetter
}

func NewController(notes NoteGetter) *Controller {
	return &Controller{notes: notes}
}

// Note loads the note with id for op on behalf of identity. The store is not
// consulted for anonymous callers.
func (c *Controller) Note(ctx context.Context, op Op, identity *model.Identity, id string) (*model.Note, error) {
	if identity == nil || identity.ID == "" {
		return nil, apperror.Unauthenticated()
	}

	note, err := c.notes.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(err, "load note")
	}
	if err := Authorize(op, identity, note); err != nil {
		return nil, err
	}
	return note, nil
}
