package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/broly1009a/studymate-sub002/assistant"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides http.addr)")
	_ = conf.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting studymate", zap.String("version", version), zap.String("env", cfg.Env))
	if cfg.usesDevSecret() {
		logger.Warn("auth.jwt-secret not set, using the development secret")
	}
	jwtSecret = []byte(cfg.Auth.JWTSecret)
	tokenTTL = cfg.Auth.TokenTTL

	db, err := openDB(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connection established")

	sessions, closeSessions, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	ai := assistant.New(newGenerator(ctx, cfg, logger), sessions, assistant.Config{
		Model:           cfg.AI.Gemini.Model,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		CostPer1KTokens: cfg.AI.CostPer1KTokens,
		HistoryTurns:    cfg.AI.HistoryTurns,
		MaxLogLength:    cfg.AI.MaxLogLength,
	}, logger.Named("assistant"))

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: newRouter(routerDeps{
			store:          newPGStore(db),
			ai:             ai,
			partners:       cfg.Partners,
			allowedOrigins: cfg.HTTP.AllowedOrigins,
			logger:         logger.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newSessionStore uses Redis when configured and an in-process store otherwise.
func newSessionStore(ctx context.Context, cfg *Config, logger *zap.Logger) (assistant.SessionStore, func(), error) {
	if cfg.Redis.URL == "" {
		logger.Info("redis.url not set, keeping assistant sessions in memory")
		return assistant.NewMemorySessions(cfg.AI.HistoryTurns * 2), func() {}, nil
	}
	rdb, err := newRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("assistant sessions stored in redis", zap.Duration("ttl", cfg.AI.SessionTTL))
	return assistant.NewRedisSessions(rdb, cfg.AI.SessionTTL, 0), func() { _ = rdb.Close() }, nil
}

// newGenerator returns nil when no API key is configured; model-bound messages
// then fail with a generic error while templates keep working.
func newGenerator(ctx context.Context, cfg *Config, logger *zap.Logger) assistant.Generator {
	if cfg.AI.Gemini.APIKey == "" {
		logger.Warn("ai.gemini.api-key not set, the assistant will only answer from templates")
		return nil
	}
	g, err := assistant.NewGemini(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model)
	if err != nil {
		logger.Error("creating gemini client", zap.Error(err))
		return nil
	}
	return g
}
