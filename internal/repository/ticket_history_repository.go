package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, change_type, old_status, new_status, sla_paused_duration_ms, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.ChangeType,
		history.OldStatus,
		history.NewStatus,
		history.PausedDuration.Milliseconds(),
		history.CreatedAt,
	).Scan(&history.ID)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, change_type, old_status, new_status, sla_paused_duration_ms, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var (
			history  domain.TicketHistory
			pausedMS int64
		)
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.ChangeType,
			&history.OldStatus,
			&history.NewStatus,
			&pausedMS,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		history.PausedDuration = time.Duration(pausedMS) * time.Millisecond
		result = append(result, history)
	}
	return result, rows.Err()
}
