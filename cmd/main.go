package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bugtrail/internal/auth"
	"bugtrail/internal/autoaccept"
	"bugtrail/internal/config"
	"bugtrail/internal/friends"
	acceptinvite "bugtrail/internal/http_server/handlers/accept_invite"
	"bugtrail/internal/http_server/handlers/federated"
	friendslist "bugtrail/internal/http_server/handlers/friends_list"
	"bugtrail/internal/http_server/handlers/invite"
	invitebatch "bugtrail/internal/http_server/handlers/invite_batch"
	"bugtrail/internal/http_server/handlers/login"
	"bugtrail/internal/http_server/handlers/logout"
	"bugtrail/internal/http_server/handlers/me"
	"bugtrail/internal/http_server/handlers/refresh"
	"bugtrail/internal/http_server/handlers/register"
	"bugtrail/internal/http_server/handlers/unfriend"
	"bugtrail/internal/identity"
	"bugtrail/internal/invites"
	"bugtrail/internal/middleware/authn"
	rateLimit "bugtrail/internal/middleware/ratelimit"
	"bugtrail/internal/rabbitmq"
	"bugtrail/internal/session"
	"bugtrail/internal/storage/postgres"
	"bugtrail/internal/tokens"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting bugtrail identity service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	tokenService := tokens.New(cfg.Tokens.Secret, cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL)
	cookies := session.NewCookieManager(cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL, cfg.Env == envProd)

	friendGraph := friends.New(log, storage, storage)

	inviteService := invites.New(
		log,
		storage,
		storage,
		friendGraph,
		msgBroker,
		cfg.Invites.Secret,
		cfg.Invites.TokenTTL,
		cfg.Invites.FrontendURL,
		cfg.Invites.MaxRecipients,
	)

	sweeper := autoaccept.New(log, storage, storage, friendGraph, cfg.Invites.Secret)

	idProvider := identity.New(
		cfg.IdentityProvider.TokenURL,
		cfg.IdentityProvider.UserInfoURL,
		cfg.IdentityProvider.ClientID,
		cfg.IdentityProvider.ClientSecret,
		cfg.IdentityProvider.RedirectURL,
	)

	authService := auth.New(log, storage, storage, idProvider, sweeper, tokenService)

	router := setupRouter(log, authService, tokenService, cookies, inviteService, friendGraph, storage)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	authService *auth.Auth,
	tokenService *tokens.Service,
	cookies *session.CookieManager,
	inviteService *invites.Service,
	friendGraph *friends.Graph,
	storage *postgres.PostgresRepo,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	validate := validator.New()

	r.With(rateLimit.Register()).Post("/register",
		register.New(log, validate, authService),
	)
	r.With(rateLimit.Login()).Post("/login",
		login.New(log, validate, authService, cookies),
	)
	r.With(rateLimit.FederatedLogin()).Post("/login/federated",
		federated.New(log, validate, authService, cookies),
	)
	r.With(rateLimit.Refresh()).Post("/refresh",
		refresh.New(log, authService, cookies),
	)
	r.Post("/logout",
		logout.New(log, cookies),
	)

	r.Group(func(r chi.Router) {
		r.Use(authn.New(log, tokenService, cookies))

		r.Get("/me", me.New(log, storage))

		r.With(rateLimit.Invite()).Post("/invites", invite.New(log, validate, inviteService))
		r.With(rateLimit.Invite()).Post("/invites/batch", invitebatch.New(log, inviteService))
		r.Post("/invites/accept", acceptinvite.New(log, inviteService))

		r.Get("/friends", friendslist.New(log, friendGraph))
		r.Delete("/friends/{id}", unfriend.New(log, friendGraph))
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
