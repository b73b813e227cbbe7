// Package backend wires the configured collaborators together: SQLite,
// session stores, the API clients and the optional AMQP publisher.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"passbook/internal/amqp"
	"passbook/internal/api"
	"passbook/internal/config"
	"passbook/internal/family"
	"passbook/internal/log"
	"passbook/internal/metrics"
	"passbook/internal/outbox"
	"passbook/internal/session"
	"passbook/internal/storage"
)

type Options struct {
	// AMQP dials the broker when AMQP_URL is set. A failed dial is logged
	// and the backend continues without a publisher.
	AMQP    bool
	Metrics *metrics.Metrics
}

// Backend holds every long-lived collaborator of a command.
type Backend struct {
	Repo    *storage.SQLiteRepository
	API     *api.Client
	Family  *family.Client
	AMQP    *amqp.Client
	Outbox  *outbox.Service
	Metrics *metrics.Metrics

	logger *slog.Logger
}

// Open opens the local database and builds the clients. The PIN session is
// restored before returning.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Backend, error) {
	if cfg == nil {
		return nil, errors.New("app config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := storage.NewSQLiteRepository(cfg.DBPath, logger.With(log.FieldComponent, log.ComponentStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	b := &Backend{Repo: repo, Metrics: opts.Metrics, logger: logger}

	pinStore := session.NewEncrypted(repo.SessionStore(storage.SessionPIN), cfg.SessionKey)
	b.API = api.New(APIConfig(cfg, logger.With(log.FieldComponent, log.ComponentAPI), opts.Metrics), pinStore)
	if err := b.API.Restore(ctx); err != nil {
		// An unreadable session (e.g. a changed PASSBOOK_SESSION_KEY) means logging in again.
		logger.WarnContext(ctx, "Stored session could not be restored", log.FieldError, err)
	}

	if cfg.FamilyAPIURL != "" {
		familyStore := session.NewEncrypted(repo.SessionStore(storage.SessionFamily), cfg.SessionKey)
		b.Family = family.NewClient(cfg.FamilyAPIURL, familyHTTPClient(cfg), familyStore,
			logger.With(log.FieldComponent, log.ComponentFamily))
	}

	var publisher outbox.Publisher
	if opts.AMQP && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.With(log.FieldComponent, log.ComponentAMQP))
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			b.AMQP = client
			publisher = client
			logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}
	b.Outbox = outbox.NewService(repo, publisher, logger.With(log.FieldComponent, log.ComponentWorker))

	logger.DebugContext(ctx, "Backend ready",
		"db_path", cfg.DBPath,
		"amqp_enabled", b.AMQP != nil,
		"family_enabled", b.Family != nil)
	return b, nil
}

// Close releases the AMQP connection and the database.
func (b *Backend) Close() error {
	var errs []error
	if b.AMQP != nil {
		if err := b.AMQP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if b.Repo != nil {
		if err := b.Repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
