package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/noteflow/internal/database"
	"github.com/dukerupert/noteflow/internal/model"
)

type VerificationTokenStore struct {
	db *database.DB
}

func NewVerificationTokenStore(db *database.DB) *VerificationTokenStore {
	return &VerificationTokenStore{db: db}
}

func scanVerificationToken(scanner interface{ Scan(...any) error }) (*model.VerificationToken, error) {
	var vt model.VerificationToken
	var expiresAt, createdAt timestamp

	if err := scanner.Scan(&vt.Identifier, &vt.TokenHash, &expiresAt, &createdAt); err != nil {
		return nil, err
	}

	vt.ExpiresAt = expiresAt.Time
	vt.CreatedAt = createdAt.Time
	return &vt, nil
}

var verificationTokenCols = []string{"identifier", "token_hash", "expires_at", "created_at"}

// Create stores a pending token. Earlier tokens for the same identifier stay valid.
func (s *VerificationTokenStore) Create(ctx context.Context, identifier, tokenHash string, expiresAt time.Time) (*model.VerificationToken, error) {
	vt := &model.VerificationToken{
		Identifier: identifier,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}

	query, args, err := s.db.Builder().
		Insert("verification_tokens").
		Columns(verificationTokenCols...).
		Values(vt.Identifier, vt.TokenHash, vt.ExpiresAt, vt.CreatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert verification token: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert verification token: %w", err)
	}
	return vt, nil
}

// Consume deletes the matching token and returns it, or (nil, nil) if there
// was none. The lookup and delete are one statement, so of two concurrent
// callers with the same token only one gets it back.
func (s *VerificationTokenStore) Consume(ctx context.Context, identifier, tokenHash string) (*model.VerificationToken, error) {
	query, args, err := s.db.Builder().
		Delete("verification_tokens").
		Where(sq.Eq{"identifier": identifier, "token_hash": tokenHash}).
		Suffix("RETURNING identifier, token_hash, expires_at, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build consume verification token: %w", err)
	}

	vt, err := scanVerificationToken(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume verification token: %w", err)
	}
	return vt, nil
}

// DeleteExpired removes tokens whose expiry is before now.
func (s *VerificationTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := s.db.Builder().
		Delete("verification_tokens").
		Where(sq.Lt{"expires_at": now.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// CountForIdentifier returns how many tokens are stored for identifier, expired or not.
func (s *VerificationTokenStore) CountForIdentifier(ctx context.Context, identifier string) (int, error) {
	query, args, err := s.db.Builder().
		Select("COUNT(*)").
		From("verification_tokens").
		Where(sq.Eq{"identifier": identifier}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count tokens: %w", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return n, nil
}
