package postgres

import (
	"context"
	"database/sql"

	"dispatch/internal/repository"
)

// TxManager implements repository.TxRunner over database/sql transactions.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

var _ repository.TxRunner = (*TxManager)(nil)

func (m *TxManager) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	repos := repository.Repos{
		Orders:        NewOrderRepositoryWithTx(tx),
		Drivers:       NewDriverRepositoryWithTx(tx),
		Cancellations: NewCancellationRepositoryWithTx(tx),
	}

	if err := fn(repos); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
