package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"leadgate/api"
	"leadgate/config"
	"leadgate/handlers"
	"leadgate/services/accounts"
	"leadgate/services/adminauth"
	"leadgate/services/credentials"
	"leadgate/services/forms"
	"leadgate/services/identity"
	"leadgate/services/ratelimit"
	"leadgate/services/relay"
	"leadgate/services/sessions"
	"leadgate/utils"
)

func main() {
	provider, err := config.NewProvider()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := provider.Get()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verifier := credentials.NewVerifier()

	accountsSvc, err := accounts.NewService(cfg.StorageDir, cfg.AdminPasswordHash, verifier, logger)
	if err != nil {
		logger.Error("failed to init accounts service", "error", err)
		os.Exit(1)
	}

	limiter, err := ratelimit.NewService(cfg.StorageDir, cfg.LoginMaxAttempts, cfg.LoginWindow, cfg.LoginLockout)
	if err != nil {
		logger.Error("failed to init rate limiter", "error", err)
		os.Exit(1)
	}

	sessionsSvc, err := sessions.NewService(cfg.StorageDir, []byte(cfg.SessionSigningKey), cfg.SessionDuration)
	if err != nil {
		logger.Error("failed to init sessions service", "error", err)
		os.Exit(1)
	}

	adminAuth := adminauth.NewService(limiter, verifier, sessionsSvc, accountsSvc)
	go adminAuth.Run(ctx)

	idProvider := identity.NewHTTPProvider(cfg.BackendBaseURL, nil)
	defer idProvider.Close()

	authCtx := identity.NewContext(idProvider)
	authCtx.Start(ctx)
	defer authCtx.Stop()

	pipeline := forms.NewPipeline(cfg.BackendBaseURL, nil, logger)
	webhookRelay := relay.NewRelay(nil, logger)

	authHandler := handlers.NewAuthHandler(adminAuth, sessionsSvc, accountsSvc, verifier)
	formsHandler := handlers.NewFormsHandler(pipeline, webhookRelay, provider)
	configHandler := handlers.NewConfigHandler(provider)
	profileHandler := handlers.NewProfileHandler(authCtx)

	// 10 form/login requests per minute per IP.
	throttle := api.NewThrottle(rate.Every(6*time.Second), 10)

	r := utils.NewRouter(cfg.SiteOrigins)
	r.Use(utils.LoggingMiddleware(logger))

	// Public site config.
	r.HandleFunc("/api/config", configHandler.Site).Methods(http.MethodGet)

	// Admin auth entry points. Login shares the public throttle; the
	// lockout limiter inside adminauth does the credential counting.
	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.Use(throttle.Middleware())
	authRoutes.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)
	authRoutes.HandleFunc("/refresh", authHandler.Refresh).Methods(http.MethodPost)
	authRoutes.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)
	authRoutes.HandleFunc("/status", authHandler.Status).Methods(http.MethodGet)
	authRoutes.PathPrefix("").HandlerFunc(authHandler.Options).Methods(http.MethodOptions)

	// Form submission: acknowledged pipeline and legacy webhook relay.
	formRoutes := r.PathPrefix("/api/forms").Subrouter()
	formRoutes.Use(throttle.Middleware())
	formRoutes.HandleFunc("/{endpointID}", formsHandler.Submit).Methods(http.MethodPost)

	relayRoutes := r.PathPrefix("/api/relay").Subrouter()
	relayRoutes.Use(throttle.Middleware())
	relayRoutes.HandleFunc("/{source}", formsHandler.Relay).Methods(http.MethodPost)

	// End-user routes behind the authenticated-only guard.
	userRoutes := r.PathPrefix("/api/me").Subrouter()
	userRoutes.Use(api.RequireUser(authCtx, api.GuardOptions{}))
	userRoutes.HandleFunc("", profileHandler.Me).Methods(http.MethodGet)
	userRoutes.HandleFunc("/signout", profileHandler.SignOut).Methods(http.MethodPost)

	// Admin-only management routes.
	adminRoutes := r.PathPrefix("/api/admin").Subrouter()
	adminRoutes.Use(api.RequireAdmin(sessionsSvc, api.AdminGuardOptions{}))
	adminRoutes.HandleFunc("/password", authHandler.ChangePassword).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/config/reload", configHandler.Reload).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/config/webhooks/{source}", configHandler.SetWebhook).Methods(http.MethodPut)
	adminRoutes.HandleFunc("/broadcast", formsHandler.Broadcast).Methods(http.MethodPost)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("leadgate listening", "addr", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("leadgate stopped")
}

// newLogger builds the service logger: JSON to stdout, plus a rotated
// file when LEADGATE_LOG_FILE is set.
func newLogger(cfg config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}
