// Package worker replays queued outbox operations against the backend.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"passbook/internal/amqp"
	"passbook/internal/api"
	"passbook/internal/core"
	"passbook/internal/log"
	"passbook/internal/metrics"
	"passbook/internal/storage"
)

// Store is the outbox side of storage.SQLiteRepository.
type Store interface {
	ClaimOperation(ctx context.Context, id string) (storage.Operation, bool, error)
	ReleaseOperation(ctx context.Context, id string) error
	ResetInFlight(ctx context.Context) (int64, error)
	PendingOperations(ctx context.Context, limit int) ([]storage.Operation, error)
	MarkSynced(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) (string, error)
	CountPending(ctx context.Context) (int, error)
	CleanupSynced(ctx context.Context, cutoff time.Time) (int64, error)
}

// Replayer sends an operation to the backend; api.Client implements it.
type Replayer interface {
	AddExpense(ctx context.Context, amount decimal.Decimal, description string) (api.ExpenseResult, error)
	AddFunds(ctx context.Context, month core.MonthKey, amount decimal.Decimal) (api.MonthResult, error)
}

// ErrMonthClosed marks a queued expense whose month ended before it synced.
// Such rows fail at once; they are never retried.
var ErrMonthClosed = errors.New("month closed before sync")

type Config struct {
	BatchSize  int
	MaxRetries int
	Interval   time.Duration
	// CleanupAge is how long synced rows are kept.
	CleanupAge time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:  10,
		MaxRetries: 5,
		Interval:   30 * time.Second,
		CleanupAge: 24 * time.Hour,
	}
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeFailed
	// outcomeDeferred leaves the row pending untouched.
	outcomeDeferred
)

// SyncWorker handles outbox messages and sweeps rows whose message was lost.
type SyncWorker struct {
	store    Store
	replayer Replayer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	config   Config

	currentMonth func() core.MonthKey

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(store Store, replayer Replayer, m *metrics.Metrics, logger *slog.Logger, config Config) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.CleanupAge <= 0 {
		config.CleanupAge = def.CleanupAge
	}
	return &SyncWorker{
		store:    store,
		replayer: replayer,
		metrics:  m,
		logger:   logger.With(log.FieldComponent, log.ComponentWorker),
		config:   config,

		currentMonth: core.CurrentMonthKey,
	}
}

// HandleMessage processes one AMQP notification. Replay failures are
// recorded on the row and not returned, so the message is acked and the
// sweep owns the retry. Only storage errors requeue the message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.OperationMessage) error {
	op, ok, err := w.store.ClaimOperation(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("claim operation: %w", err)
	}
	if !ok {
		w.logger.DebugContext(ctx, "Operation missing or already handled, dropping message",
			log.FieldOutboxID, msg.ID)
		return nil
	}

	_, err = w.sync(ctx, op)
	return err
}

// ProcessPending replays one batch of pending operations, oldest first.
// Rows claimed concurrently by HandleMessage are skipped. It stops early
// when the backend session has expired.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	ops, err := w.store.PendingOperations(ctx, w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending operations: %w", err)
	}
	if len(ops) == 0 {
		w.updatePending(ctx)
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending operations", "count", len(ops))

	synced := 0
	for _, pending := range ops {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		op, ok, err := w.store.ClaimOperation(ctx, pending.ID)
		if err != nil {
			return synced, fmt.Errorf("claim operation: %w", err)
		}
		if !ok {
			continue
		}
		res, err := w.sync(ctx, op)
		if err != nil {
			return synced, err
		}
		if res == outcomeDeferred {
			break
		}
		if res == outcomeSynced {
			synced++
		}
	}
	w.updatePending(ctx)
	return synced, nil
}

// sync replays a claimed op and records the outcome. It returns an error
// only when the outcome itself could not be stored.
func (w *SyncWorker) sync(ctx context.Context, op storage.Operation) (outcome, error) {
	err := w.replay(ctx, op)
	w.metrics.ObserveSync(op.Kind, err)

	if err == nil {
		if err := w.store.MarkSynced(ctx, op.ID); err != nil {
			return outcomeSynced, fmt.Errorf("mark synced: %w", err)
		}
		w.logger.InfoContext(ctx, "Operation synced",
			log.FieldOutboxID, op.ID, log.FieldKind, op.Kind, log.FieldMonth, op.Month)
		return outcomeSynced, nil
	}

	if errors.Is(err, api.ErrSessionExpired) {
		// Not the operation's fault; leave it pending without spending an attempt.
		if err := w.store.ReleaseOperation(ctx, op.ID); err != nil {
			return outcomeDeferred, fmt.Errorf("release operation: %w", err)
		}
		w.logger.WarnContext(ctx, "Backend session expired, log in again to resume sync",
			log.FieldOutboxID, op.ID)
		return outcomeDeferred, nil
	}

	maxAttempts := w.config.MaxRetries
	if errors.Is(err, ErrMonthClosed) {
		maxAttempts = 1
	}
	status, markErr := w.store.MarkFailed(ctx, op.ID, err, maxAttempts)
	if markErr != nil {
		return outcomeFailed, fmt.Errorf("mark failed: %w", markErr)
	}
	w.logger.WarnContext(ctx, "Operation replay failed",
		log.FieldOutboxID, op.ID,
		log.FieldKind, op.Kind,
		log.FieldAttempts, op.Attempts+1,
		"status", status,
		log.FieldError, err)
	return outcomeFailed, nil
}

// replay sends op to the backend. The backend files a new expense under
// the month current on its side, so an expense queued in an earlier month
// cannot be replayed.
func (w *SyncWorker) replay(ctx context.Context, op storage.Operation) error {
	switch op.Kind {
	case storage.KindAddExpense:
		if current := w.currentMonth(); op.Month != current {
			return fmt.Errorf("%w: queued for %s, now %s", ErrMonthClosed, op.Month, current)
		}
		_, err := w.replayer.AddExpense(ctx, op.Amount, op.Description)
		return err
	case storage.KindAddFunds:
		_, err := w.replayer.AddFunds(ctx, op.Month, op.Amount)
		return err
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (w *SyncWorker) updatePending(ctx context.Context) {
	n, err := w.store.CountPending(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to count pending operations", log.FieldError, err)
		return
	}
	w.metrics.SetPending(n)
}

// Cleanup removes synced rows older than the configured age.
func (w *SyncWorker) Cleanup(ctx context.Context) (int64, error) {
	n, err := w.store.CleanupSynced(ctx, time.Now().Add(-w.config.CleanupAge))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "Cleaned up synced operations", "count", n)
	}
	return n, nil
}

// Start runs the periodic sweep until Stop or ctx cancellation.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	if n, err := w.store.ResetInFlight(ctx); err != nil {
		w.logger.WarnContext(ctx, "Failed to release in-flight operations", log.FieldError, err)
	} else if n > 0 {
		w.logger.WarnContext(ctx, "Released operations left in flight by a previous run", "count", n)
	}

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Sync worker started",
		"interval", w.config.Interval,
		"batch_size", w.config.BatchSize,
		"max_retries", w.config.MaxRetries)
	return nil
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SyncWorker) sweep(ctx context.Context) {
	if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Pending sweep failed", log.FieldError, err)
	}
	if _, err := w.Cleanup(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Outbox cleanup failed", log.FieldError, err)
	}
}

// Stop halts the sweep loop and waits for it, bounded by ctx.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		w.logger.InfoContext(ctx, "Sync worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
