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

type UserStore struct {
	db *database.DB
}

func NewUserStore(db *database.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var name sql.NullString
	var verified, createdAt, updatedAt timestamp

	err := scanner.Scan(&u.ID, &u.Email, &name, &verified, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	u.Name = name.String
	u.EmailVerified = verified.ptr()
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}

var userCols = []string{"id", "email", "name", "email_verified", "created_at", "updated_at"}

func nullableName(name string) sql.NullString {
	return sql.NullString{String: name, Valid: name != ""}
}

// Create inserts a new user. Returns ErrDuplicateEmail if the email is taken;
// the existing row is left untouched.
func (s *UserStore) Create(ctx context.Context, email, name string) (*model.User, error) {
	now := time.Now().UTC()
	query, args, err := s.db.Builder().
		Insert("users").
		Columns(userCols...).
		Values(uuid.NewString(), email, nullableName(name), nil, now, now).
		Suffix("RETURNING " + strings.Join(userCols, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.getBy(ctx, sq.Eq{"id": id})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getBy(ctx, sq.Eq{"email": email})
}

func (s *UserStore) getBy(ctx context.Context, pred sq.Eq) (*model.User, error) {
	query, args, err := s.db.Builder().Select(userCols...).From("users").Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// MarkVerified sets email_verified for the user with email, creating the user
// first if none exists. name is used only when the row is created or has no
// name yet.
func (s *UserStore) MarkVerified(ctx context.Context, email, name string, at time.Time) (*model.User, error) {
	at = at.UTC()
	query, args, err := s.db.Builder().
		Insert("users").
		Columns(userCols...).
		Values(uuid.NewString(), email, nullableName(name), at, at, at).
		Suffix("ON CONFLICT (email) DO UPDATE SET email_verified = excluded.email_verified, name = COALESCE(users.name, excluded.name), updated_at = excluded.updated_at").
		Suffix("RETURNING " + strings.Join(userCols, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert user: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("mark user verified: %w", err)
	}
	return u, nil
}

// UpdateName sets the display name. Returns (nil, nil) if the user does not exist.
func (s *UserStore) UpdateName(ctx context.Context, id, name string) (*model.User, error) {
	query, args, err := s.db.Builder().
		Update("users").
		Set("name", nullableName(name)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userCols, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update user name: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update user name: %w", err)
	}
	return u, nil
}
