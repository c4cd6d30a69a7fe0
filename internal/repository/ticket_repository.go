package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// TicketFilter captures SLA scan parameters.
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	AssignedAgent *string
	CreatedBefore *time.Time
	AfterID       string
	Limit         int
}

// TicketMutation edits a ticket loaded under lock. Returning an error aborts
// the transaction.
type TicketMutation func(ticket *domain.Ticket) error

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// Mutate loads the ticket with a row lock, applies fn and writes the
	// result back, so concurrent status changes on one ticket are serialized.
	Mutate(ctx context.Context, id string, fn TicketMutation) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, priority, ticket_type, status, assigned_agent_id,
               sla_pause_started_at, sla_paused_duration_ms, first_response_at, resolved_at,
               created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets`
	args := []any{}
	clauses := []string{}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.AssignedAgent != nil {
		args = append(args, *filter.AssignedAgent)
		clauses = append(clauses, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.AfterID != "" {
		args = append(args, filter.AfterID)
		clauses = append(clauses, fmt.Sprintf("id > $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY id ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Mutate(ctx context.Context, id string, fn TicketMutation) (*domain.Ticket, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	ticket, err := scanTicket(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := fn(ticket); err != nil {
		return nil, err
	}

	const update = `
        UPDATE tickets SET priority=$1, ticket_type=$2, status=$3, assigned_agent_id=$4,
            sla_pause_started_at=$5, sla_paused_duration_ms=$6, first_response_at=$7, resolved_at=$8,
            updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, update,
		ticket.Priority,
		ticket.Type,
		ticket.Status,
		ticket.AssignedAgentID,
		ticket.SLA.PauseStartedAt,
		ticket.SLA.PausedDuration.Milliseconds(),
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		pausedMS int64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Priority,
		&ticket.Type,
		&ticket.Status,
		&ticket.AssignedAgentID,
		&ticket.SLA.PauseStartedAt,
		&pausedMS,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.SLA.PausedDuration = time.Duration(pausedMS) * time.Millisecond
	return &ticket, nil
}
