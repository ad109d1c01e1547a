package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dukerupert/noteflow/internal/database"
	"github.com/dukerupert/noteflow/internal/model"
)

// NoteStore persists notes. It does not check ownership; callers go through
// the access package before reading or mutating a note by id.
type NoteStore struct {
	db *database.DB
}

func NewNoteStore(db *database.DB) *NoteStore {
	return &NoteStore{db: db}
}

func scanNote(scanner interface{ Scan(...any) error }) (*model.Note, error) {
	var n model.Note
	var createdAt, updatedAt timestamp

	err := scanner.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Content, &n.IsArchived, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.CreatedAt = createdAt.Time
	n.UpdatedAt = updatedAt.Time
	return &n, nil
}

var noteCols = []string{"id", "user_id", "title", "content", "is_archived", "created_at", "updated_at"}

var returningNote = "RETURNING " + strings.Join(noteCols, ", ")

// Create inserts a note owned by userID.
func (s *NoteStore) Create(ctx context.Context, userID, title, content string) (*model.Note, error) {
	now := time.Now().UTC()
	query, args, err := s.db.Builder().
		Insert("notes").
		Columns(noteCols...).
		Values(uuid.NewString(), userID, title, content, false, now, now).
		Suffix(returningNote).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert note: %w", err)
	}

	n, err := scanNote(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

func (s *NoteStore) GetByID(ctx context.Context, id string) (*model.Note, error) {
	query, args, err := s.db.Builder().Select(noteCols...).From("notes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get note: %w", err)
	}

	n, err := scanNote(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// ListByUser returns the user's notes with the given archived flag, most
// recently updated first.
func (s *NoteStore) ListByUser(ctx context.Context, userID string, archived bool) ([]model.Note, error) {
	query, args, err := s.db.Builder().
		Select(noteCols...).
		From("notes").
		Where(sq.Eq{"user_id": userID, "is_archived": archived}).
		OrderBy("updated_at DESC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list notes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// Update replaces title and content, and the archived flag when archived is
// non-nil. Returns (nil, nil) if the note does not exist.
func (s *NoteStore) Update(ctx context.Context, id, title, content string, archived *bool) (*model.Note, error) {
	b := s.db.Builder().
		Update("notes").
		Set("title", title).
		Set("content", content).
		Set("updated_at", time.Now().UTC())
	if archived != nil {
		b = b.Set("is_archived", *archived)
	}

	query, args, err := b.Where(sq.Eq{"id": id}).Suffix(returningNote).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update note: %w", err)
	}

	n, err := scanNote(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return n, nil
}

// SetArchived sets the archived flag. Returns (nil, nil) if the note does not exist.
func (s *NoteStore) SetArchived(ctx context.Context, id string, archived bool) (*model.Note, error) {
	query, args, err := s.db.Builder().
		Update("notes").
		Set("is_archived", archived).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix(returningNote).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build archive note: %w", err)
	}

	n, err := scanNote(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive note: %w", err)
	}
	return n, nil
}

func (s *NoteStore) Delete(ctx context.Context, id string) error {
	query, args, err := s.db.Builder().Delete("notes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete note: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
