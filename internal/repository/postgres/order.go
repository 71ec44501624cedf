package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

const orderColumns = `
	id, customer_id, status, payment_status, payer, payment_method,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	distance_km, duration_min, lifter_count,
	total_cost, driver_share, service_fee_pct,
	vehicle_type, service_category,
	assigned_driver_id, pick_up_date, completion_otp, access_token,
	is_viewed, viewed_at, created_at
`

// Create persists a new order and its initial history entry.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	_, err := r.q.ExecContext(ctx, query,
		order.ID,
		order.CustomerID,
		order.Status,
		order.PaymentStatus,
		order.Payer,
		order.PaymentMethod,
		order.PickupLat,
		order.PickupLng,
		order.DropoffLat,
		order.DropoffLng,
		order.DistanceKm,
		order.DurationMin,
		order.LifterCount,
		order.TotalCost,
		order.DriverShare,
		order.ServiceFeePct,
		order.VehicleType,
		order.ServiceCategory,
		nullString(order.AssignedDriverID),
		nullTime(order.PickUpDate),
		order.CompletionOTP,
		order.AccessToken,
		order.IsViewed,
		nullTime(order.ViewedAt),
		order.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, change := range order.StatusHistory {
		if err := r.AppendHistory(ctx, order.ID, change); err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves an order by ID, including its status history.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := r.scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	history, err := r.loadHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.StatusHistory = history

	return order, nil
}

// GetByAccessToken retrieves an order by its customer access token.
func (r *OrderRepository) GetByAccessToken(ctx context.Context, token string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE access_token = $1`
	order, err := r.scanOrder(r.q.QueryRowContext(ctx, query, token))
	if err != nil {
		return nil, err
	}

	history, err := r.loadHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.StatusHistory = history

	return order, nil
}

// GetAll retrieves recent orders. History is not loaded for list views.
func (r *OrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Update updates an existing order's mutable fields.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1, payment_status = $2, assigned_driver_id = $3,
		    distance_km = $4, duration_min = $5,
		    total_cost = $6, driver_share = $7, service_fee_pct = $8,
		    pick_up_date = $9, is_viewed = $10, viewed_at = $11
		WHERE id = $12
	`

	result, err := r.q.ExecContext(ctx, query,
		order.Status,
		order.PaymentStatus,
		nullString(order.AssignedDriverID),
		order.DistanceKm,
		order.DurationMin,
		order.TotalCost,
		order.DriverShare,
		order.ServiceFeePct,
		nullTime(order.PickUpDate),
		order.IsViewed,
		nullTime(order.ViewedAt),
		order.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// AppendHistory records one status-history entry for the order.
func (r *OrderRepository) AppendHistory(ctx context.Context, orderID string, change domain.StatusChange) error {
	query := `INSERT INTO order_status_history (order_id, status, occurred_at) VALUES ($1, $2, $3)`
	_, err := r.q.ExecContext(ctx, query, orderID, change.Status, change.OccurredAt)
	return err
}

// AssignDriver atomically claims an unassigned, confirmed order for the
// driver. The conditional update is the single-winner guarantee: the first
// caller flips the row, every later caller affects zero rows.
func (r *OrderRepository) AssignDriver(ctx context.Context, orderID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1, assigned_driver_id = $2
		WHERE id = $3 AND status = $4 AND assigned_driver_id IS NULL
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.OrderStatusPreparing,
		driverID,
		orderID,
		domain.OrderStatusConfirmed,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, nil
	}

	return true, r.AppendHistory(ctx, orderID, domain.StatusChange{
		Status:     domain.OrderStatusPreparing,
		OccurredAt: at,
	})
}

// MarkViewed sets is_viewed/viewed_at once; later calls change nothing.
func (r *OrderRepository) MarkViewed(ctx context.Context, orderID string, at time.Time) error {
	query := `UPDATE orders SET is_viewed = TRUE, viewed_at = $1 WHERE id = $2 AND is_viewed = FALSE`
	_, err := r.q.ExecContext(ctx, query, at, orderID)
	return err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *OrderRepository) scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var assignedDriverID sql.NullString
	var pickUpDate, viewedAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.Status,
		&order.PaymentStatus,
		&order.Payer,
		&order.PaymentMethod,
		&order.PickupLat,
		&order.PickupLng,
		&order.DropoffLat,
		&order.DropoffLng,
		&order.DistanceKm,
		&order.DurationMin,
		&order.LifterCount,
		&order.TotalCost,
		&order.DriverShare,
		&order.ServiceFeePct,
		&order.VehicleType,
		&order.ServiceCategory,
		&assignedDriverID,
		&pickUpDate,
		&order.CompletionOTP,
		&order.AccessToken,
		&order.IsViewed,
		&viewedAt,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if assignedDriverID.Valid {
		order.AssignedDriverID = assignedDriverID.String
	}
	if pickUpDate.Valid {
		order.PickUpDate = pickUpDate.Time
	}
	if viewedAt.Valid {
		order.ViewedAt = viewedAt.Time
	}

	return &order, nil
}

func (r *OrderRepository) loadHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	query := `SELECT status, occurred_at FROM order_status_history WHERE order_id = $1 ORDER BY occurred_at ASC, id ASC`

	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.StatusChange
	for rows.Next() {
		var change domain.StatusChange
		if err := rows.Scan(&change.Status, &change.OccurredAt); err != nil {
			return nil, err
		}
		history = append(history, change)
	}
	return history, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
