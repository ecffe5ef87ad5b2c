package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jobfield/payment-engine/internal/models"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			checkout_id VARCHAR(255) PRIMARY KEY,
			phone VARCHAR(20) NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			reference VARCHAR(100) NOT NULL,
			description VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			receipt VARCHAR(100) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (checkout_id, phone, amount, reference, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tx.CheckoutID, tx.Phone, tx.Amount, tx.Reference, tx.Description, models.TxPending)
	return err
}

func (r *TransactionRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.QueryRowContext(ctx, `
		SELECT checkout_id, phone, amount, reference, description, status, receipt, created_at, updated_at
		FROM transactions WHERE checkout_id = $1
	`, checkoutID).Scan(&tx.CheckoutID, &tx.Phone, &tx.Amount, &tx.Reference,
		&tx.Description, &tx.Status, &tx.Receipt, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// MarkCompleted transitions pending -> completed and records the receipt.
// The WHERE status clause plus the rows-affected check make the transition
// atomic: only one of any number of racing callers gets true back.
func (r *TransactionRepository) MarkCompleted(ctx context.Context, checkoutID, receipt string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, receipt = $2, updated_at = NOW()
		WHERE checkout_id = $3 AND status = $4
	`, models.TxCompleted, receipt, checkoutID, models.TxPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// MarkFailed transitions pending -> failed under the same guard.
func (r *TransactionRepository) MarkFailed(ctx context.Context, checkoutID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE checkout_id = $2 AND status = $3
	`, models.TxFailed, checkoutID, models.TxPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// FindStalePending lists transactions that have sat in pending longer than
// olderThan, oldest first, for the reconciliation sweep.
func (r *TransactionRepository) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT checkout_id, phone, amount, reference, description, status, receipt, created_at, updated_at
		FROM transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, models.TxPending, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.CheckoutID, &tx.Phone, &tx.Amount, &tx.Reference,
			&tx.Description, &tx.Status, &tx.Receipt, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
