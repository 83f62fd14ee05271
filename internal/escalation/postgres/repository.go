// Package postgres provides the PostgreSQL implementation of the escalation
// history log.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/escalation-garden/internal/domain"
	"github.com/bissquit/escalation-garden/internal/escalation"
)

// HistoryRepository implements the escalation.HistoryLog interface using
// PostgreSQL. The table is append-only; nothing here deletes rows.
type HistoryRepository struct {
	db *pgxpool.Pool
}

// NewHistoryRepository creates a new PostgreSQL history repository.
func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record appends one history entry.
func (r *HistoryRepository) Record(ctx context.Context, entry domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO escalation_history
			(id, escalation_id, alert_id, action, occurred_at, rule_count, channels, escalation_level, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.EscalationID,
		entry.AlertID,
		string(entry.Action),
		entry.Timestamp,
		entry.RuleCount,
		entry.Channels,
		entry.EscalationLevel,
		entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("record history entry: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first. Date bounds are inclusive.
func (r *HistoryRepository) Query(ctx context.Context, filter escalation.HistoryFilter) ([]domain.HistoryEntry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.AlertID != "" {
		add("alert_id = $%d", filter.AlertID)
	}
	if filter.EscalationID != "" {
		add("escalation_id = $%d", filter.EscalationID)
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	}
	if filter.DateFrom != nil {
		add("occurred_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("occurred_at <= $%d", *filter.DateTo)
	}

	query := `
		SELECT id, escalation_id, alert_id, action, occurred_at, rule_count, channels, escalation_level, reason
		FROM escalation_history
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC, id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			e      domain.HistoryEntry
			action string
		)
		err := rows.Scan(
			&e.ID,
			&e.EscalationID,
			&e.AlertID,
			&action,
			&e.Timestamp,
			&e.RuleCount,
			&e.Channels,
			&e.EscalationLevel,
			&e.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Action = domain.HistoryAction(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return out, nil
}
