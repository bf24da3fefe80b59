package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LogRepository interface {
	Append(ctx context.Context, entry *LogEntry) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]LogEntry, error)
}

type postgresLogRepository struct {
	db *pgxpool.Pool
}

func NewLogRepository(db *pgxpool.Pool) LogRepository {
	return &postgresLogRepository{db: db}
}

func (r *postgresLogRepository) Append(ctx context.Context, entry *LogEntry) error {
	if entry.ID == uuid.Nil {
		genID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate log entry ID: %w", err)
		}
		entry.ID = genID
	}
	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO fulfillment_logs (id, order_id, action, outcome, request, response, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.OrderID, string(entry.Action), string(entry.Outcome),
		entry.Request, entry.Response, entry.ErrorMessage, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to append fulfillment log for order %s: %w", entry.OrderID, err)
	}
	return nil
}

func (r *postgresLogRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, order_id, action, outcome, request, response, error_message, created_at
		FROM fulfillment_logs
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query fulfillment logs for order %s: %w", orderID, err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0)
	for rows.Next() {
		var e LogEntry
		err := rows.Scan(&e.ID, &e.OrderID, &e.Action, &e.Outcome, &e.Request, &e.Response, &e.ErrorMessage, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan fulfillment log for order %s: %w", orderID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating fulfillment logs for order %s: %w", orderID, err)
	}

	return entries, nil
}
