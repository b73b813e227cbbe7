// Package outbox queues writes locally so they can be replayed against the
// backend later by the sync worker.
package outbox

import (
	"context"
	"fmt"
	"log/slog"

	"passbook/internal/core"
	"passbook/internal/log"
	"passbook/internal/storage"
)

// Store persists queued operations.
type Store interface {
	EnqueueOperation(ctx context.Context, op storage.Operation) (string, error)
}

// Publisher notifies the sync worker that an operation is waiting.
type Publisher interface {
	PublishOperation(ctx context.Context, id, kind string) error
}

// Service saves operations in SQLite first, then publishes a notification.
// A failed or missing publisher leaves the row for the worker's sweep.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// NewService accepts a nil publisher.
func NewService(store Store, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, publisher: publisher, logger: logger}
}

// QueueExpense validates and queues an expense for the current month.
func (s *Service) QueueExpense(ctx context.Context, amountInput, descInput string) (string, error) {
	amount, err := core.ParseAmount(amountInput)
	if err != nil {
		return "", err
	}
	desc, err := core.ValidateDescription(descInput)
	if err != nil {
		return "", err
	}
	return s.queue(ctx, storage.Operation{
		Kind:        storage.KindAddExpense,
		Month:       core.CurrentMonthKey(),
		Amount:      amount,
		Description: desc,
	})
}

// QueueFunds validates and queues a top-up for month.
func (s *Service) QueueFunds(ctx context.Context, month core.MonthKey, amountInput string) (string, error) {
	if !month.Valid() {
		return "", core.ErrNoMonthSelected
	}
	amount, err := core.ParseAmount(amountInput)
	if err != nil {
		return "", err
	}
	return s.queue(ctx, storage.Operation{
		Kind:   storage.KindAddFunds,
		Month:  month,
		Amount: amount,
	})
}

func (s *Service) queue(ctx context.Context, op storage.Operation) (string, error) {
	id, err := s.store.EnqueueOperation(ctx, op)
	if err != nil {
		return "", fmt.Errorf("queue %s: %w", op.Kind, err)
	}

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP publisher not available, operation left for sweep",
			log.FieldOutboxID, id)
		return id, nil
	}
	if err := s.publisher.PublishOperation(ctx, id, op.Kind); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish operation message",
			log.FieldOutboxID, id,
			log.FieldKind, op.Kind,
			log.FieldError, err)
	}
	return id, nil
}
