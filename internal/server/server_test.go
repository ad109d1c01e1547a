package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/noteflow/internal/auth"
	"github.com/dukerupert/noteflow/internal/config"
	"github.com/dukerupert/noteflow/internal/database"
	"github.com/dukerupert/noteflow/internal/email"
	"github.com/dukerupert/noteflow/internal/model"
)

const testBaseURL = "http://notes.test"

type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// lastLink returns the path and query of the most recent sign-in link.
func (s *recordingSender) lastLink(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no message sent")
	for _, field := range strings.Fields(s.sent[len(s.sent)-1].Text) {
		if u, err := url.Parse(field); err == nil && u.Path == auth.CallbackPath {
			return u.RequestURI()
		}
	}
	t.Fatalf("no sign-in link in message")
	return ""
}

type testApp struct {
	handler http.Handler
	sender  *recordingSender
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		BaseURL: testBaseURL,
		Session: config.Session{
			Secret: "0123456789abcdef0123456789abcdef",
			MaxAge: 720 * time.Hour,
		},
		Auth: config.Auth{
			TokenTTL:        24 * time.Hour,
			ProtectedPaths:  []string{"/dashboard"},
			SignInRateLimit: 10,
		},
	}

	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, sender, cfg, logger)
	return &testApp{handler: srv.Router(), sender: sender}
}

func (a *testApp) do(t *testing.T, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) requestSignIn(t *testing.T, addr, callbackURL string) {
	t.Helper()
	form := url.Values{"email": {addr}, "callbackUrl": {callbackURL}}
	req := httptest.NewRequest("POST", "/auth/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/verify-request", rec.Header().Get("Location"))
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func (a *testApp) signIn(t *testing.T, addr string) *http.Cookie {
	t.Helper()
	a.requestSignIn(t, addr, "")
	rec := a.do(t, "GET", a.sender.lastLink(t), "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	return sessionCookie(t, rec)
}

type sessionBody struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
	Expires time.Time `json:"expires"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSignInFlow(t *testing.T) {
	app := newTestApp(t)

	app.requestSignIn(t, "a@x.com", "")
	link := app.sender.lastLink(t)

	rec := app.do(t, "GET", link, "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testBaseURL+"/dashboard", rec.Header().Get("Location"))
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)

	rec = app.do(t, "GET", "/api/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[sessionBody](t, rec)
	assert.Equal(t, "a@x.com", sess.User.Email)
	assert.NotEmpty(t, sess.User.ID)
	assert.WithinDuration(t, time.Now().Add(720*time.Hour), sess.Expires, time.Minute)

	// second use of the same link
	rec = app.do(t, "GET", link, "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/error?error=Verification", rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestSignInFormCarriesName(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{"email": {"a@x.com"}, "name": {"Alice"}}
	req := httptest.NewRequest("POST", "/auth/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.do(t, "GET", app.sender.lastLink(t), "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := sessionCookie(t, rec)

	rec = app.do(t, "GET", "/api/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[sessionBody](t, rec)
	assert.Equal(t, "a@x.com", sess.User.Email)
	assert.Equal(t, "Alice", sess.User.Name)
}

func TestSignUpForm(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/auth/signup", "/auth/create-account"} {
		rec := app.do(t, "GET", path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `name="name"`, path)
	}

	form := url.Values{"email": {"bo@x.com"}, "name": {"Bo"}}
	req := httptest.NewRequest("POST", "/auth/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/verify-request", rec.Header().Get("Location"))

	rec = app.do(t, "GET", app.sender.lastLink(t), "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	rec = app.do(t, "GET", "/api/auth/session", "", sessionCookie(t, rec))
	assert.Equal(t, "Bo", decode[sessionBody](t, rec).User.Name)
}

func TestSignInAPICarriesName(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, "POST", "/api/auth/signin/email", `{"email":"cy@x.com","name":"Cy"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, "GET", app.sender.lastLink(t), "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	rec = app.do(t, "GET", "/api/auth/session", "", sessionCookie(t, rec))
	assert.Equal(t, "Cy", decode[sessionBody](t, rec).User.Name)
}

func TestSignInRejectsMissingEmail(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{"email": {"  "}}
	req := httptest.NewRequest("POST", "/auth/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email is required")
	assert.Empty(t, app.sender.sent)
}

func TestCallbackRedirects(t *testing.T) {
	tests := []struct {
		name     string
		callback string
		want     string
	}{
		{"relative path", "/dashboard", testBaseURL + "/dashboard"},
		{"same origin", testBaseURL + "/dashboard?archived=true", testBaseURL + "/dashboard?archived=true"},
		{"other origin", "https://evil.example/", testBaseURL + "/dashboard"},
		{"protocol relative", "//evil.example/", testBaseURL + "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			app.requestSignIn(t, "a@x.com", tt.callback)

			rec := app.do(t, "GET", app.sender.lastLink(t), "", nil)
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestSignOut(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "a@x.com")

	rec := app.do(t, "POST", "/api/auth/signout", "", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cleared := sessionCookie(t, rec)
	assert.Equal(t, -1, cleared.MaxAge)

	rec = app.do(t, "GET", "/api/auth/session", "", nil)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestDashboardGuard(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, "GET", "/dashboard", "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/signin?callbackUrl=%2Fdashboard", rec.Header().Get("Location"))

	rec = app.do(t, "GET", "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	cookie := app.signIn(t, "a@x.com")
	rec = app.do(t, "GET", "/dashboard", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a@x.com")
}

func TestDashboardNoteControls(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "a@x.com")

	rec := app.do(t, "POST", "/api/notes", `{"title":"Groceries","content":"milk"}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	note := decode[model.Note](t, rec)

	rec = app.do(t, "GET", "/dashboard", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-id="`+note.ID+`"`)
	assert.Contains(t, body, `class="edit-note"`)
	assert.Contains(t, body, `data-action="archive">Archive<`)
	assert.Contains(t, body, `data-action="delete"`)

	rec = app.do(t, "POST", "/api/notes/"+note.ID+"/archive", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, "GET", "/dashboard?archived=true", "", cookie)
	assert.Contains(t, rec.Body.String(), `data-action="archive">Unarchive<`)
}

func TestTamperedCookieIsAnonymous(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "a@x.com")
	cookie.Value += "x"

	rec := app.do(t, "GET", "/api/notes", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNoteOwnership(t *testing.T) {
	app := newTestApp(t)
	u1 := app.signIn(t, "u1@x.com")
	u2 := app.signIn(t, "u2@x.com")

	rec := app.do(t, "POST", "/api/notes", `{"title":"Groceries","content":"milk, eggs"}`, u1)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Note](t, rec)
	path := "/api/notes/" + created.ID

	rec = app.do(t, "GET", path, "", u2)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, "GET", path, "", u1)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Note](t, rec)
	assert.Equal(t, "Groceries", got.Title)
	assert.Equal(t, "milk, eggs", got.Content)

	rec = app.do(t, "DELETE", path, "", u2)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, "DELETE", path, "", u1)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, "GET", path, "", u1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not_found", body["error"])
}

func TestNoteUnauthenticated(t *testing.T) {
	app := newTestApp(t)

	for _, method := range []string{"GET", "PUT", "DELETE"} {
		rec := app.do(t, method, "/api/notes/does-not-exist", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, method)
	}
}

func TestNoteUpdate(t *testing.T) {
	app := newTestApp(t)
	u1 := app.signIn(t, "u1@x.com")
	u2 := app.signIn(t, "u2@x.com")

	rec := app.do(t, "POST", "/api/notes", `{"title":"Draft","content":"text"}`, u1)
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/api/notes/" + decode[model.Note](t, rec).ID

	rec = app.do(t, "PUT", path, `{"content":"no title"}`, u1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, "PUT", path, `{"title":"Stolen"}`, u2)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, "PUT", "/api/notes/missing", `{"title":"x"}`, u1)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, "PUT", path, `{"title":"Final"}`, u1)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.Note](t, rec)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "", updated.Content)
}

func TestNoteArchiveAndList(t *testing.T) {
	app := newTestApp(t)
	u1 := app.signIn(t, "u1@x.com")

	rec := app.do(t, "POST", "/api/notes", `{"title":"Old"}`, u1)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[model.Note](t, rec).ID
	app.do(t, "POST", "/api/notes", `{"title":"New"}`, u1)

	rec = app.do(t, "POST", "/api/notes/"+id+"/archive", "", u1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.Note](t, rec).IsArchived)

	rec = app.do(t, "GET", "/api/notes", "", u1)
	active := decode[[]model.Note](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, "New", active[0].Title)

	rec = app.do(t, "GET", "/api/notes?archived=true", "", u1)
	archived := decode[[]model.Note](t, rec)
	require.Len(t, archived, 1)
	assert.Equal(t, id, archived[0].ID)
}

func TestCreateUser(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, "POST", "/api/users", `{"email":"new@x.com","name":"New"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode[model.User](t, rec)
	assert.Equal(t, "new@x.com", user.Email)
	assert.Equal(t, "New", user.Name)

	rec = app.do(t, "POST", "/api/users", `{"email":" NEW@x.com ","name":"Other"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, "POST", "/api/users", `{"name":"Nobody"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "email", body["field"])
}

func TestUpdateMeReissuesSession(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "a@x.com")

	rec := app.do(t, "PUT", "/api/users/me", `{"name":"Ada"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := sessionCookie(t, rec)

	rec = app.do(t, "GET", "/api/auth/session", "", fresh)
	sess := decode[sessionBody](t, rec)
	assert.Equal(t, "Ada", sess.User.Name)
}

func TestSignInRateLimit(t *testing.T) {
	app := newTestApp(t)

	var last int
	for i := 0; i < 11; i++ {
		rec := app.do(t, "POST", "/api/auth/signin/email", `{"email":"a@x.com"}`, nil)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestSignInRateLimitIgnoresForwardedHeaders(t *testing.T) {
	app := newTestApp(t)

	var codes []int
	for i := 0; i < 30; i++ {
		form := url.Values{"email": {"a@x.com"}}
		req := httptest.NewRequest("POST", "/auth/signin", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("CF-Connecting-IP", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	for i, code := range codes {
		if i < 10 {
			assert.Equal(t, http.StatusSeeOther, code, "request %d", i)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, code, "request %d", i)
		}
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
