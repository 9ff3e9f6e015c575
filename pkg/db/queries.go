package db

import (
	"context"
	"database/sql"
	"errors"
)

// ErrUserIDRequired is returned when a per-user query is called without a user id.
var ErrUserIDRequired = errors.New("user_id is required")

// CreateUser inserts a new user row.
func (d *Database) CreateUser(ctx context.Context, u User) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES (?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash)
	return err
}

// GetUserByEmail returns the user with the given email, or nil when absent.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email)

	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateTradeRecord inserts a history row for an executed trade.
func (d *Database) CreateTradeRecord(ctx context.Context, t TradeRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trade_history (
			id, user_id, strategy_id, token_id, side, level, amount, price, fee, tx_ref
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.StrategyID, t.TokenID, t.Side, t.Level, t.Amount, t.Price, t.Fee, t.TxRef)
	return err
}

// CreateStrategyEvent inserts a lifecycle event row.
func (d *Database) CreateStrategyEvent(ctx context.Context, e StrategyEvent) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO strategy_events (id, user_id, strategy_id, event_type, detail)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.StrategyID, e.EventType, e.Detail)
	return err
}

// RecordRevenue books a platform fee against a user.
func (d *Database) RecordRevenue(ctx context.Context, userID string, feeAmount float64) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO revenue (user_id, fee_amount) VALUES (?, ?)
	`, userID, feeAmount)
	return err
}

// TotalRevenue sums booked fees, optionally for a single user (empty = all users).
func (d *Database) TotalRevenue(ctx context.Context, userID string) (float64, error) {
	var total float64
	var err error
	if userID == "" {
		err = d.DB.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(fee_amount), 0) FROM revenue`).Scan(&total)
	} else {
		err = d.DB.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(fee_amount), 0) FROM revenue WHERE user_id = ?`, userID).Scan(&total)
	}
	return total, err
}

// GetTradesByUser returns recent trade history rows for a user.
func (d *Database) GetTradesByUser(ctx context.Context, userID string, limit int) ([]TradeRecord, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, strategy_id, token_id, side, level, amount, price, fee, COALESCE(tx_ref, ''), created_at
		FROM trade_history WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.UserID, &t.StrategyID, &t.TokenID, &t.Side,
			&t.Level, &t.Amount, &t.Price, &t.Fee, &t.TxRef, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetEventsByStrategy returns lifecycle events for one strategy, oldest first.
func (d *Database) GetEventsByStrategy(ctx context.Context, strategyID string, limit int) ([]StrategyEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, strategy_id, event_type, COALESCE(detail, ''), created_at
		FROM strategy_events WHERE strategy_id = ?
		ORDER BY created_at ASC LIMIT ?
	`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StrategyEvent
	for rows.Next() {
		var e StrategyEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.StrategyID, &e.EventType, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
