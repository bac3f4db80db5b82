package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/smarttransit/busline-backend/internal/models"
)

// LoyaltyRepository reads loyalty balances and ledgers
type LoyaltyRepository struct {
	db DB
}

// NewLoyaltyRepository creates a new LoyaltyRepository
func NewLoyaltyRepository(db DB) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

// recordLoyalty adjusts the user's balance by points and appends a ledger entry
func recordLoyalty(ctx context.Context, q Queryer, userID string, bookingID *string, points int, txType models.LoyaltyTransactionType, description string) error {
	balanceQuery := `
		INSERT INTO users (id, loyalty_points)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET loyalty_points = users.loyalty_points + EXCLUDED.loyalty_points, updated_at = NOW()
	`
	if _, err := q.ExecContext(ctx, balanceQuery, userID, points); err != nil {
		return fmt.Errorf("failed to update loyalty balance: %w", err)
	}

	ledgerQuery := `
		INSERT INTO loyalty_transactions (user_id, booking_id, points, type, description)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := q.ExecContext(ctx, ledgerQuery, userID, bookingID, points, txType, description); err != nil {
		return fmt.Errorf("failed to record loyalty transaction: %w", err)
	}
	return nil
}

// GetBalance returns the user's loyalty points, zero if the user never earned any
func (r *LoyaltyRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	var points int
	err := r.db.GetContext(ctx, &points, `SELECT loyalty_points FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(mapPQError(err), ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get loyalty balance: %w", err)
	}
	return points, nil
}

// ListTransactions returns the user's ledger, newest first
func (r *LoyaltyRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]models.LoyaltyTransaction, error) {
	query := `
		SELECT id, user_id, booking_id, points, type, description, created_at
		FROM loyalty_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	txs := []models.LoyaltyTransaction{}
	if err := r.db.SelectContext(ctx, &txs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list loyalty transactions: %w", err)
	}
	return txs, nil
}
