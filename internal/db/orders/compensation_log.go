package ordersdb

import (
	"context"
	"database/sql"
	"time"
)

// CompensationLog persists compensation outcomes in Postgres so operators
// can find orders needing manual reconciliation.
type CompensationLog struct {
	db *sql.DB
}

// NewCompensationLog constructs a CompensationLog backed by Postgres.
func NewCompensationLog(db *sql.DB) *CompensationLog {
	return &CompensationLog{db: db}
}

// NewCompensationLogWithSchema initializes the schema then returns the log.
func NewCompensationLogWithSchema(ctx context.Context, db *sql.DB) (*CompensationLog, error) {
	log := NewCompensationLog(db)
	if err := log.InitSchema(ctx); err != nil {
		return nil, err
	}
	return log, nil
}

// InitSchema creates the compensation table if it does not exist.
func (l *CompensationLog) InitSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS order_compensations (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL,
			action TEXT NOT NULL,
			succeeded BOOLEAN NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// Record appends a compensation outcome row.
func (l *CompensationLog) Record(ctx context.Context, orderID, action string, succeeded bool, detail string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO order_compensations (order_id, action, succeeded, detail)
		VALUES ($1, $2, $3, $4)`,
		orderID, action, succeeded, detail,
	)
	return err
}

// CompensationRecord is one logged compensating action.
type CompensationRecord struct {
	OrderID   string
	Action    string
	Succeeded bool
	Detail    string
	CreatedAt time.Time
}

// RecentForOrder returns the newest compensation rows for an order, most
// recent first.
func (l *CompensationLog) RecentForOrder(ctx context.Context, orderID string, limit int) ([]CompensationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT order_id, action, succeeded, detail, created_at
		FROM order_compensations
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		orderID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CompensationRecord
	for rows.Next() {
		var rec CompensationRecord
		if err := rows.Scan(&rec.OrderID, &rec.Action, &rec.Succeeded, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
