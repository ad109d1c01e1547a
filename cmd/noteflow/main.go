package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/noteflow/internal/config"
	"github.com/dukerupert/noteflow/internal/database"
	"github.com/dukerupert/noteflow/internal/email"
	"github.com/dukerupert/noteflow/internal/logging"
	"github.com/dukerupert/noteflow/internal/server"
)

const cleanupInterval = time.Minute

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "noteflow: %v\n", err)
		os.Exit(2)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, newSender(cfg), cfg, logger)

	switch cfg.Command() {
	case "", "serve":
		serve(cfg, srv)
	case "migrate":
		slog.Info("migrations applied", "driver", cfg.Database.Driver)
	case "prune":
		n, err := srv.Authenticator().SweepExpired(context.Background())
		if err != nil {
			slog.Error("prune", "error", err)
			os.Exit(1)
		}
		slog.Info("prune complete", "removed", n)
	default:
		fmt.Fprintf(os.Stderr, "noteflow: unknown command %q (want serve, migrate or prune)\n", cfg.Command())
		os.Exit(2)
	}
}

func newSender(cfg *config.Config) email.Sender {
	if cfg.Email.Transport == "postmark" {
		return email.NewPostmarkSender(cfg.Email.PostmarkToken, cfg.Email.From)
	}
	s := cfg.Email.SMTP
	return email.NewSMTPSender(s.Host, s.Port, s.User, s.Password, cfg.Email.From)
}

func serve(cfg *config.Config, srv *server.Server) {
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		lastSweep := time.Now()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
				if cfg.Auth.SweepInterval > 0 && time.Since(lastSweep) >= cfg.Auth.SweepInterval {
					if _, err := srv.Authenticator().SweepExpired(cleanupCtx); err != nil {
						slog.Error("sweep expired sign-in links", "error", err)
					}
					lastSweep = time.Now()
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("noteflow starting", "addr", cfg.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
