package server

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dukerupert/noteflow/internal/auth"
	"github.com/dukerupert/noteflow/internal/config"
	"github.com/dukerupert/noteflow/internal/database"
	"github.com/dukerupert/noteflow/internal/email"
	"github.com/dukerupert/noteflow/internal/handler"
	"github.com/dukerupert/noteflow/internal/middleware"
	"github.com/dukerupert/noteflow/internal/store"
	ws "github.com/dukerupert/noteflow/internal/websocket"
)

const signInWindow = time.Minute

type Server struct {
	cfg         *config.Config
	hub         *ws.Hub
	authn       *auth.Authenticator
	sessions    *auth.SessionManager
	guard       *middleware.Guard
	authH       *handler.AuthHandler
	userH       *handler.UserHandler
	noteH       *handler.NoteHandler
	pageH       *handler.PageHandler
	rateLimiter *middleware.RateLimiter
	proxies     []netip.Prefix
	logger      *slog.Logger
}

func New(db *database.DB, sender email.Sender, cfg *config.Config, logger *slog.Logger, opts ...auth.Option) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	noteStore := store.NewNoteStore(db)
	tokenStore := store.NewVerificationTokenStore(db)

	secret := []byte(cfg.Session.Secret)
	authn := auth.NewAuthenticator(auth.Config{
		BaseURL:  cfg.BaseURL,
		Secret:   secret,
		TokenTTL: cfg.Auth.TokenTTL,
	}, tokenStore, userStore, sender, logger, opts...)
	sessions := auth.NewSessionManager(secret, cfg.BaseURL, cfg.Session.MaxAge)

	proxies, err := middleware.ParseTrustedProxies(cfg.Auth.TrustedProxies)
	if err != nil {
		logger.Warn("ignoring trusted proxies", "error", err)
		proxies = nil
	}

	return &Server{
		cfg:         cfg,
		hub:         hub,
		authn:       authn,
		sessions:    sessions,
		guard:       middleware.NewGuard(cfg.Auth.ProtectedPaths, handler.SignInPath),
		authH:       handler.NewAuthHandler(authn, sessions, cfg.BaseURL, logger.With("component", "auth_handler")),
		userH:       handler.NewUserHandler(userStore, sessions, logger.With("component", "user")),
		noteH:       handler.NewNoteHandler(noteStore, hub, logger.With("component", "note")),
		pageH:       handler.NewPageHandler(noteStore, logger.With("component", "page")),
		rateLimiter: middleware.NewRateLimiter(),
		proxies:     proxies,
		logger:      logger,
	}
}

// Authenticator returns the authenticator for maintenance tasks.
func (s *Server) Authenticator() *auth.Authenticator {
	return s.authn
}

// RateLimiter returns the rate limiter for cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.TrustProxies(s.proxies))
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LoadIdentity(s.sessions))
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(s.guard.Middleware)

	r.Get("/health", s.pageH.Health)
	r.Get("/", s.pageH.Landing)
	r.Get("/dashboard", s.pageH.Dashboard)

	signInLimit := middleware.RateLimit(s.rateLimiter, middleware.RemoteIP, s.cfg.Auth.SignInRateLimit, signInWindow)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/signin", s.authH.SignInPage)
		r.With(signInLimit).Post("/signin", s.authH.SignIn)
		r.Get("/signup", s.authH.SignUpPage)
		r.With(signInLimit).Post("/signup", s.authH.SignUp)
		r.Get("/create-account", s.authH.SignUpPage)
		r.Get("/verify-request", s.authH.VerifyRequestPage)
		r.Get("/error", s.authH.ErrorPage)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(signInLimit).Post("/auth/signin/email", s.authH.SignInAPI)
		r.Get("/auth/callback/email", s.authH.Callback)
		r.Get("/auth/session", s.authH.Session)
		r.Post("/auth/signout", s.authH.SignOut)

		r.Post("/users", s.userH.Create)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity)

			r.Put("/users/me", s.userH.UpdateMe)

			r.Get("/notes", s.noteH.List)
			r.Post("/notes", s.noteH.Create)
			r.Get("/notes/{id}", s.noteH.Get)
			r.Put("/notes/{id}", s.noteH.Update)
			r.Delete("/notes/{id}", s.noteH.Delete)
			r.Post("/notes/{id}/archive", s.noteH.Archive)
		})
	})

	r.With(middleware.RequireIdentity).Get("/ws", ws.HandleWebSocket(s.hub, s.cfg.BaseURL, s.logger.With("component", "websocket")))

	return r
}
