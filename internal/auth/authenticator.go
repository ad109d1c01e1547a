package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/noteflow/internal/apperror"
	"github.com/dukerupert/noteflow/internal/email"
	"github.com/dukerupert/noteflow/internal/model"
)

// CallbackPath is where sign-in links land.
const CallbackPath = "/api/auth/callback/email"

const (
	DefaultTokenTTL    = 24 * time.Hour
	DefaultSendTimeout = 15 * time.Second
)

type TokenStore interface {
	Create(ctx context.Context, identifier, tokenHash string, expiresAt time.Time) (*model.VerificationToken, error)
	Consume(ctx context.Context, identifier, tokenHash string) (*model.VerificationToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type UserStore interface {
	MarkVerified(ctx context.Context, email, name string, at time.Time) (*model.User, error)
}

type Config struct {
	BaseURL  string
	Secret   []byte
	TokenTTL time.Duration
}

// Authenticator issues and redeems magic-link tokens.
type Authenticator struct {
	cfg         Config
	tokens      TokenStore
	users       UserStore
	sender      email.Sender
	logger      *slog.Logger
	now         func() time.Time
	sendTimeout time.Duration
}

type Option func(*Authenticator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// WithSendTimeout bounds each email delivery attempt.
func WithSendTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		a.sendTimeout = d
	}
}

func NewAuthenticator(cfg Config, tokens TokenStore, users UserStore, sender email.Sender, logger *slog.Logger, opts ...Option) *Authenticator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	a := &Authenticator{
		cfg:         cfg,
		tokens:      tokens,
		users:       users,
		sender:      sender,
		logger:      logger.With("component", "auth"),
		now:         time.Now,
		sendTimeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// maxNameLength caps the display name offered at sign-up.
const maxNameLength = 100

// RequestSignIn stores a new token for addr and mails the sign-in link.
// name and callbackURL, when set, travel inside the link. The name is only
// applied if verification creates the account; callbackURL is checked by
// ResolveRedirect after verification.
func (a *Authenticator) RequestSignIn(ctx context.Context, addr, name, callbackURL string) error {
	identifier := NormalizeEmail(addr)
	if identifier == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if !ValidEmail(identifier) {
		return apperror.ValidationFailed("email", "email is invalid")
	}
	name = strings.TrimSpace(name)
	if len(name) > maxNameLength {
		return apperror.ValidationFailed("name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}

	raw, err := generateToken()
	if err != nil {
		return apperror.Wrap(err, "request sign-in")
	}
	hash, err := deriveToken(a.cfg.Secret, raw)
	if err != nil {
		return apperror.Wrap(err, "request sign-in")
	}

	expiresAt := a.now().Add(a.cfg.TokenTTL)
	if _, err := a.tokens.Create(ctx, identifier, hash, expiresAt); err != nil {
		return apperror.Wrap(err, "request sign-in")
	}

	sendCtx, cancel := context.WithTimeout(ctx, a.sendTimeout)
	defer cancel()

	msg := email.MagicLinkMessage(identifier, a.signInURL(identifier, raw, name, callbackURL), a.cfg.TokenTTL)
	if err := a.sender.Send(sendCtx, msg); err != nil {
		a.logger.Error("sign-in email failed", "email", identifier, "error", err)
		return apperror.DeliveryFailed(err)
	}

	a.logger.Info("sign-in link sent", "email", identifier, "expires_at", expiresAt)
	return nil
}

func (a *Authenticator) signInURL(identifier, raw, name, callbackURL string) string {
	q := url.Values{}
	q.Set("token", raw)
	q.Set("email", identifier)
	if name != "" {
		q.Set("name", name)
	}
	if callbackURL != "" {
		q.Set("callbackUrl", callbackURL)
	}
	return a.cfg.BaseURL + CallbackPath + "?" + q.Encode()
}

// VerifyToken redeems a token. The token is gone after the first attempt
// that finds it, whether or not it had expired. On success the user is
// created if needed, taking name as its display name, and marked verified.
// An existing user keeps the name it has.
func (a *Authenticator) VerifyToken(ctx context.Context, identifier, raw, name string) (*model.User, error) {
	identifier = NormalizeEmail(identifier)
	if identifier == "" || raw == "" {
		return nil, apperror.TokenInvalid()
	}

	hash, err := deriveToken(a.cfg.Secret, raw)
	if err != nil {
		return nil, apperror.Wrap(err, "verify sign-in link")
	}

	vt, err := a.tokens.Consume(ctx, identifier, hash)
	if err != nil {
		return nil, apperror.Wrap(err, "verify sign-in link")
	}
	if vt == nil {
		a.logger.Warn("sign-in link rejected", "email", identifier, "reason", "unknown or used")
		return nil, apperror.TokenInvalid()
	}

	now := a.now()
	if vt.Expired(now) {
		a.logger.Warn("sign-in link rejected", "email", identifier, "reason", "expired")
		return nil, apperror.TokenExpired()
	}

	user, err := a.users.MarkVerified(ctx, identifier, trimName(name), now)
	if err != nil {
		return nil, apperror.Wrap(err, "verify sign-in link")
	}

	a.logger.Info("sign-in verified", "user_id", user.ID)
	return user, nil
}

func trimName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxNameLength {
		return ""
	}
	return name
}

// SweepExpired deletes tokens that can no longer be redeemed.
func (a *Authenticator) SweepExpired(ctx context.Context) (int64, error) {
	n, err := a.tokens.DeleteExpired(ctx, a.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired tokens: %w", err)
	}
	if n > 0 {
		a.logger.Info("expired sign-in links removed", "count", n)
	}
	return n, nil
}
