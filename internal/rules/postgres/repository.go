// Package postgres provides the PostgreSQL write-through store for the rule
// catalog.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/escalation-garden/internal/domain"
)

// Repository implements the rules.Store interface using PostgreSQL. The rule
// document is stored as JSONB so rule shape changes do not need schema
// migrations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL rule repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveRule upserts a rule document keyed by rule id.
func (r *Repository) SaveRule(ctx context.Context, rule domain.Rule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule %s: %w", rule.ID, err)
	}

	query := `
		INSERT INTO escalation_rules (id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, rule.ID, data, rule.CreatedAt, rule.UpdatedAt); err != nil {
		return fmt.Errorf("save rule %s: %w", rule.ID, err)
	}
	return nil
}

// DeleteRule removes a rule document. Deleting an absent id is not an error.
func (r *Repository) DeleteRule(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM escalation_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return nil
}

// LoadRules returns all stored rule documents.
func (r *Repository) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	rows, err := r.db.Query(ctx, `SELECT data FROM escalation_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var rule domain.Rule
		if err := json.Unmarshal(data, &rule); err != nil {
			return nil, fmt.Errorf("unmarshal rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return out, nil
}
