package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// CancellationRepository is a PostgreSQL implementation of
// repository.CancellationRepository.
type CancellationRepository struct {
	q Querier
}

// NewCancellationRepository creates a new PostgreSQL cancellation repository.
func NewCancellationRepository(db *sql.DB) *CancellationRepository {
	return &CancellationRepository{q: db}
}

// NewCancellationRepositoryWithTx creates a cancellation repository using a transaction.
func NewCancellationRepositoryWithTx(tx *sql.Tx) *CancellationRepository {
	return &CancellationRepository{q: tx}
}

const cancellationColumns = `id, order_id, driver_id, status, reason, created_at, resolved_at`

// Create persists a new PENDING cancellation request.
func (r *CancellationRepository) Create(ctx context.Context, req *domain.CancellationRequest) error {
	query := `
		INSERT INTO cancellation_requests (` + cancellationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var reason sql.NullString
	if req.Reason != "" {
		reason = sql.NullString{String: req.Reason, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		req.ID,
		req.OrderID,
		req.DriverID,
		req.Status,
		reason,
		req.CreatedAt,
		nullTime(req.ResolvedAt),
	)
	return err
}

// GetByID retrieves a request by ID.
func (r *CancellationRepository) GetByID(ctx context.Context, id string) (*domain.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE id = $1`
	return r.scanRequest(r.q.QueryRowContext(ctx, query, id))
}

// GetByOrderID retrieves all requests for an order.
func (r *CancellationRepository) GetByOrderID(ctx context.Context, orderID string) ([]*domain.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests WHERE order_id = $1 ORDER BY created_at ASC`

	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.CancellationRequest
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Resolve moves a PENDING request to a terminal status. The status guard in
// the WHERE clause makes resolution first-writer-wins: a request already
// resolved affects zero rows and returns false.
func (r *CancellationRepository) Resolve(ctx context.Context, id string, status domain.CancellationStatus, at time.Time) (bool, error) {
	query := `
		UPDATE cancellation_requests
		SET status = $1, resolved_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query, status, at, id, domain.CancellationStatusPending)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// RejectOtherPending rejects every PENDING request for the order except the
// given one.
func (r *CancellationRepository) RejectOtherPending(ctx context.Context, orderID, exceptID string, at time.Time) error {
	query := `
		UPDATE cancellation_requests
		SET status = $1, resolved_at = $2
		WHERE order_id = $3 AND id <> $4 AND status = $5
	`

	_, err := r.q.ExecContext(ctx, query,
		domain.CancellationStatusRejected,
		at,
		orderID,
		exceptID,
		domain.CancellationStatusPending,
	)
	return err
}

func (r *CancellationRepository) scanRequest(row rowScanner) (*domain.CancellationRequest, error) {
	var req domain.CancellationRequest
	var reason sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.OrderID,
		&req.DriverID,
		&req.Status,
		&reason,
		&req.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if reason.Valid {
		req.Reason = reason.String
	}
	if resolvedAt.Valid {
		req.ResolvedAt = resolvedAt.Time
	}

	return &req, nil
}
