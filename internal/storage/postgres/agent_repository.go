package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/domain/agent"
)

type AgentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAgentRepository(db *pgxpool.Pool, logger *zap.Logger) *AgentRepository {
	return &AgentRepository{
		db:     db,
		logger: logger.Named("AgentRepository"),
	}
}

var _ agent.Repository = (*AgentRepository)(nil)

func (r *AgentRepository) List(ctx context.Context) ([]*agent.Agent, error) {
	query := `SELECT email, COALESCE(name, '') FROM agents ORDER BY name ASC, email ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query agents", zap.Error(err))
		return nil, fmt.Errorf("database error on list agents: %w", err)
	}
	defer rows.Close()

	agents := make([]*agent.Agent, 0)
	for rows.Next() {
		var a agent.Agent
		if err := rows.Scan(&a.Email, &a.Name); err != nil {
			return nil, fmt.Errorf("database scan error during agent list: %w", err)
		}
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}

func (r *AgentRepository) FindByEmail(ctx context.Context, email string) (*agent.Agent, error) {
	query := `SELECT email, COALESCE(name, '') FROM agents WHERE email = $1`
	var a agent.Agent
	if err := r.db.QueryRow(ctx, query, email).Scan(&a.Email, &a.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, agent.ErrNotFound
		}
		return nil, fmt.Errorf("database error on find agent: %w", err)
	}
	return &a, nil
}
