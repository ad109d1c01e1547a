package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/noteflow/internal/model"
)

// SessionCookieName holds the signed session token.
const SessionCookieName = "noteflow.session-token"

const DefaultSessionMaxAge = 30 * 24 * time.Hour

var ErrInvalidSession = errors.New("invalid session")

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Session is a decoded, verified session.
type Session struct {
	Identity  model.Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionManager signs identities into HS256 cookies and reads them back.
// Claims are taken from the user record at issuance and trusted until expiry.
type SessionManager struct {
	secret []byte
	issuer string
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

func NewSessionManager(secret []byte, baseURL string, maxAge time.Duration) *SessionManager {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &SessionManager{
		secret: secret,
		issuer: strings.TrimRight(baseURL, "/"),
		maxAge: maxAge,
		secure: strings.HasPrefix(baseURL, "https://"),
		now:    time.Now,
	}
}

// MaxAge is the fixed lifetime of every issued session.
func (m *SessionManager) MaxAge() time.Duration {
	return m.maxAge
}

// Encode signs a session for user. The expiry is exactly issuance + max age.
func (m *SessionManager) Encode(user *model.User) (string, time.Time, error) {
	now := m.now().Truncate(time.Second)
	expires := now.Add(m.maxAge)

	id := model.IdentityOf(user)
	c := sessionClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expires, nil
}

// Decode verifies a session token's signature, issuer and expiry.
func (m *SessionManager) Decode(token string) (*Session, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&sessionClaims{},
		func(t *jwt.Token) (any, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	c, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || c.Subject == "" || c.IssuedAt == nil {
		return nil, ErrInvalidSession
	}
	if c.ExpiresAt.Time.Sub(c.IssuedAt.Time) > m.maxAge {
		return nil, fmt.Errorf("%w: lifetime exceeds max age", ErrInvalidSession)
	}

	return &Session{
		Identity:  model.Identity{ID: c.Subject, Email: c.Email, Name: c.Name},
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Issue sets the session cookie for user.
func (m *SessionManager) Issue(w http.ResponseWriter, user *model.User) (time.Time, error) {
	token, expires, err := m.Encode(user)
	if err != nil {
		return time.Time{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return expires, nil
}

// Resolve returns the session carried by r, or nil for anonymous requests.
// Invalid or expired cookies count as anonymous.
func (m *SessionManager) Resolve(r *http.Request) *Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := m.Decode(cookie.Value)
	if err != nil {
		return nil
	}
	return sess
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
