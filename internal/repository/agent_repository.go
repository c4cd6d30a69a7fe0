package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// AgentRepository handles persistence for agent profiles and skills.
type AgentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error)
}

// AgentFilter defines query params for agent listing.
type AgentFilter struct {
	Active   *bool
	Category *string
	Limit    int
	Offset   int
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	const query = `
        SELECT id, name, skills, max_sessions, created_at, updated_at
        FROM agents WHERE id=$1`
	return scanAgent(r.pool.QueryRow(ctx, query, id))
}

func (r *agentRepository) List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error) {
	query := `
        SELECT id, name, skills, max_sessions, created_at, updated_at
        FROM agents`
	args := []any{}
	clauses := []string{}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if filter.Category != nil {
		payload, err := json.Marshal([]map[string]string{{"category": *filter.Category}})
		if err != nil {
			return nil, err
		}
		args = append(args, string(payload))
		clauses = append(clauses, fmt.Sprintf("skills @> $%d::jsonb", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY id ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var (
		agent  domain.Agent
		skills []byte
	)
	if err := row.Scan(
		&agent.ID,
		&agent.Name,
		&skills,
		&agent.MaxSessions,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &agent.Skills); err != nil {
			return nil, fmt.Errorf("decode skills for agent %s: %w", agent.ID, err)
		}
	}
	// live status comes from the presence store
	agent.Status = domain.AgentStatusOffline
	return &agent, nil
}
