package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"passbook/internal/core"
)

// Operation kinds replayed by the sync worker.
const (
	KindAddExpense = "expense.add"
	KindAddFunds   = "funds.add"
)

// Operation statuses.
const (
	StatusPending = "pending"
	// StatusInFlight marks a row claimed by one replay; nobody else may send it.
	StatusInFlight = "in_flight"
	StatusSynced   = "synced"
	StatusFailed   = "failed"
)

var ErrOperationNotFound = errors.New("outbox operation not found")

// Operation is a write queued locally until the sync worker replays it
// against the backend.
type Operation struct {
	ID          string
	Kind        string
	Month       core.MonthKey
	Amount      decimal.Decimal
	Description string
	Status      string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const operationColumns = `id, kind, month, amount, description, status, attempts, last_error, created_at, updated_at`

// EnqueueOperation stores op as pending and returns its generated id.
func (r *SQLiteRepository) EnqueueOperation(ctx context.Context, op Operation) (string, error) {
	switch op.Kind {
	case KindAddExpense, KindAddFunds:
	default:
		return "", fmt.Errorf("unsupported operation kind %q", op.Kind)
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	now := r.now().Unix()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outbox (`+operationColumns+`) VALUES (?, ?, ?, ?, ?, ?, 0, '', ?, ?)`,
		op.ID, op.Kind, string(op.Month), op.Amount.String(), op.Description, StatusPending, now, now)
	if err != nil {
		return "", fmt.Errorf("enqueue operation: %w", err)
	}

	r.logger.InfoContext(ctx, "Operation queued", "outbox_id", op.ID, "kind", op.Kind, "month", op.Month)
	return op.ID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (Operation, error) {
	var (
		op                   Operation
		month, amount        string
		createdAt, updatedAt int64
	)
	err := row.Scan(&op.ID, &op.Kind, &month, &amount, &op.Description, &op.Status,
		&op.Attempts, &op.LastError, &createdAt, &updatedAt)
	if err != nil {
		return Operation{}, err
	}
	op.Month = core.MonthKey(month)
	op.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Operation{}, fmt.Errorf("parse amount of %s: %w", op.ID, err)
	}
	op.CreatedAt = time.Unix(createdAt, 0)
	op.UpdatedAt = time.Unix(updatedAt, 0)
	return op, nil
}

func (r *SQLiteRepository) GetOperation(ctx context.Context, id string) (Operation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM outbox WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Operation{}, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	if err != nil {
		return Operation{}, fmt.Errorf("get operation: %w", err)
	}
	return op, nil
}

// PendingOperations returns up to limit pending operations, oldest first.
func (r *SQLiteRepository) PendingOperations(ctx context.Context, limit int) ([]Operation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM outbox WHERE status = ? ORDER BY created_at, rowid LIMIT ?`,
		StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// ClaimOperation moves a pending operation to in-flight and returns it.
// ok is false when the row is missing or no longer pending, in which case
// the caller must not replay it.
func (r *SQLiteRepository) ClaimOperation(ctx context.Context, id string) (op Operation, ok bool, err error) {
	op, err = scanOperation(r.db.QueryRowContext(ctx,
		`UPDATE outbox SET status = ?, updated_at = ? WHERE id = ? AND status = ? RETURNING `+operationColumns,
		StatusInFlight, r.now().Unix(), id, StatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return Operation{}, false, nil
	}
	if err != nil {
		return Operation{}, false, fmt.Errorf("claim operation: %w", err)
	}
	return op, true, nil
}

// ReleaseOperation returns an in-flight operation to pending without
// counting an attempt.
func (r *SQLiteRepository) ReleaseOperation(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusPending, r.now().Unix(), id, StatusInFlight)
	if err != nil {
		return fmt.Errorf("release operation: %w", err)
	}
	return nil
}

// ResetInFlight releases every in-flight row. It runs at worker startup,
// when any claim left behind belongs to a process that died mid-replay.
func (r *SQLiteRepository) ResetInFlight(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, r.now().Unix(), StatusInFlight)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight operations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE status = ?`, StatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending operations: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, last_error = '', updated_at = ? WHERE id = ?`,
		StatusSynced, r.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("mark operation synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}

	r.logger.InfoContext(ctx, "Operation marked as synced", "outbox_id", id)
	return nil
}

// MarkFailed records a failed attempt. The operation stays pending until it
// has failed maxAttempts times, then it is parked as failed.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) (string, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	var status string
	err := r.db.QueryRowContext(ctx, `
		UPDATE outbox SET
			attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
			updated_at = ?
		WHERE id = ?
		RETURNING status`,
		msg, maxAttempts, StatusFailed, StatusPending, r.now().Unix(), id,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("mark operation failed: %w", err)
	}

	r.logger.WarnContext(ctx, "Operation sync failed", "outbox_id", id, "status", status, "error", msg)
	return status, nil
}

// CleanupSynced deletes synced operations last touched before cutoff.
func (r *SQLiteRepository) CleanupSynced(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE status = ? AND updated_at < ?`, StatusSynced, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup synced operations: %w", err)
	}
	return res.RowsAffected()
}
