package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crosspost/crosspost-backend/internal/adapter/llm"
	"github.com/crosspost/crosspost-backend/internal/adapter/postgres"
	campaignrepo "github.com/crosspost/crosspost-backend/internal/adapter/postgres/campaign"
	connectionrepo "github.com/crosspost/crosspost-backend/internal/adapter/postgres/connection"
	credentialrepo "github.com/crosspost/crosspost-backend/internal/adapter/postgres/credential"
	draftrepo "github.com/crosspost/crosspost-backend/internal/adapter/postgres/draft"
	"github.com/crosspost/crosspost-backend/internal/adapter/social"
	"github.com/crosspost/crosspost-backend/internal/config"
	"github.com/crosspost/crosspost-backend/internal/service/campaign"
	"github.com/crosspost/crosspost-backend/internal/service/connection"
	"github.com/crosspost/crosspost-backend/internal/service/content"
	"github.com/crosspost/crosspost-backend/internal/service/credential"
	"github.com/crosspost/crosspost-backend/internal/service/publish"
	"github.com/crosspost/crosspost-backend/internal/vault"
)

// App is the composition root: every service wired and ready for a
// transport layer to call.
type App struct {
	Log *slog.Logger

	Connections *connection.Service
	Credentials *credential.Service
	Campaigns   *campaign.Service
	Content     *content.Service
	Publish     *publish.Service

	pool *pgxpool.Pool
}

// New loads dependencies bottom-up: database, vault, adapter registries,
// then services. The pool stays open until Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := postgres.Migrate(ctx, cfg.Database.DSN); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	v, err := vault.New(cfg.Vault.MasterKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	socialRegistry := social.NewRegistry(logger, cfg.OAuth)
	llmRegistry := llm.NewRegistry(logger, cfg.LLM)
	txManager := postgres.NewTxManager(pool)

	connRepo := connectionrepo.New(pool)
	credRepo := credentialrepo.New(pool)
	drafts := draftrepo.New(pool)
	campaigns := campaignrepo.New(pool, drafts)

	connections := connection.NewService(logger, connRepo, socialRegistry, v, txManager, cfg.OAuth)

	return &App{
		Log:         logger,
		Connections: connections,
		Credentials: credential.NewService(logger, credRepo, v),
		Campaigns:   campaign.NewService(logger, campaigns),
		Content:     content.NewService(logger, drafts, campaigns, credRepo, llmRegistry, v),
		Publish:     publish.NewService(logger, drafts, campaigns, connections, socialRegistry, v),
		pool:        pool,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.pool.Close()
}

// Run wires the application and blocks until the context is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
