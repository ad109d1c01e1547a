package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/noteflow/internal/apperror"
	"github.com/dukerupert/noteflow/internal/auth"
)

const (
	SignInPath        = "/auth/signin"
	SignUpPath        = "/auth/signup"
	VerifyRequestPath = "/auth/verify-request"
	ErrorPath         = "/auth/error"
)

// Sign-in error page keys.
const (
	ErrVerification  = "Verification"
	ErrEmailSignin   = "EmailSignin"
	ErrConfiguration = "Configuration"
	ErrDefault       = "Default"
)

var errorMessages = map[string]string{
	ErrVerification:  "The sign-in link is no longer valid. It may have been used already or it may have expired.",
	ErrEmailSignin:   "The sign-in email could not be sent. Please try again.",
	ErrConfiguration: "There is a problem with the server configuration.",
	ErrDefault:       "Unable to sign in.",
}

type AuthHandler struct {
	authn     *auth.Authenticator
	sessions  *auth.SessionManager
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

func NewAuthHandler(authn *auth.Authenticator, sessions *auth.SessionManager, baseURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authn:     authn,
		sessions:  sessions,
		baseURL:   baseURL,
		templates: parseTemplates(),
		logger:    logger,
	}
}

func (h *AuthHandler) SignInPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.logger, h.templates, http.StatusOK, "auth_signin.html", map[string]any{
		"CallbackURL": r.URL.Query().Get("callbackUrl"),
	})
}

// SignUpPage asks for a display name as well as the email address. The
// account itself is created when the emailed link is followed.
func (h *AuthHandler) SignUpPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.logger, h.templates, http.StatusOK, "auth_signup.html", map[string]any{
		"CallbackURL": r.URL.Query().Get("callbackUrl"),
	})
}

// SignIn handles the sign-in form.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.requestSignIn(w, r, "auth_signin.html")
}

// SignUp handles the sign-up form.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.requestSignIn(w, r, "auth_signup.html")
}

func (h *AuthHandler) requestSignIn(w http.ResponseWriter, r *http.Request, page string) {
	addr := r.FormValue("email")
	name := r.FormValue("name")
	callbackURL := r.FormValue("callbackUrl")

	if err := h.authn.RequestSignIn(r.Context(), addr, name, callbackURL); err != nil {
		switch apperror.KindOf(err) {
		case apperror.Validation:
			render(w, h.logger, h.templates, http.StatusBadRequest, page, map[string]any{
				"Email":       addr,
				"Name":        name,
				"CallbackURL": callbackURL,
				"Error":       apperror.Message(err),
			})
		case apperror.Delivery:
			http.Redirect(w, r, errorURL(ErrEmailSignin), http.StatusSeeOther)
		default:
			h.logger.Error("request sign-in", "error", err)
			http.Redirect(w, r, errorURL(ErrDefault), http.StatusSeeOther)
		}
		return
	}

	http.Redirect(w, r, VerifyRequestPath, http.StatusSeeOther)
}

type signInRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	CallbackURL string `json:"callbackUrl"`
}

// SignInAPI is the JSON form of SignIn.
func (h *AuthHandler) SignInAPI(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.authn.RequestSignIn(r.Context(), req.Email, req.Name, req.CallbackURL); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": h.baseURL + VerifyRequestPath})
}

func (h *AuthHandler) VerifyRequestPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.logger, h.templates, http.StatusOK, "auth_verify_request.html", nil)
}

// Callback redeems a sign-in link, issues the session cookie and redirects
// to the link's callbackUrl when ResolveRedirect allows it.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	user, err := h.authn.VerifyToken(r.Context(), q.Get("email"), q.Get("token"), q.Get("name"))
	if err != nil {
		switch apperror.KindOf(err) {
		case apperror.InvalidToken, apperror.ExpiredToken:
			http.Redirect(w, r, errorURL(ErrVerification), http.StatusSeeOther)
		default:
			h.logger.Error("verify sign-in link", "error", err)
			http.Redirect(w, r, errorURL(ErrDefault), http.StatusSeeOther)
		}
		return
	}

	if _, err := h.sessions.Issue(w, user); err != nil {
		h.logger.Error("issue session", "user_id", user.ID, "error", err)
		http.Redirect(w, r, errorURL(ErrConfiguration), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, auth.ResolveRedirect(q.Get("callbackUrl"), h.baseURL), http.StatusFound)
}

func (h *AuthHandler) ErrorPage(w http.ResponseWriter, r *http.Request) {
	msg, ok := errorMessages[r.URL.Query().Get("error")]
	if !ok {
		msg = errorMessages[ErrDefault]
	}
	render(w, h.logger, h.templates, http.StatusOK, "auth_error.html", map[string]any{
		"Message": msg,
	})
}

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sessionResponse struct {
	User    *sessionUser `json:"user,omitempty"`
	Expires *time.Time   `json:"expires,omitempty"`
}

// Session reports the caller's session, or {} when anonymous.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Resolve(r)
	if sess == nil {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		User: &sessionUser{
			ID:    sess.Identity.ID,
			Email: sess.Identity.Email,
			Name:  sess.Identity.Name,
		},
		Expires: &sess.ExpiresAt,
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func errorURL(kind string) string {
	return ErrorPath + "?" + url.Values{"error": {kind}}.Encode()
}
