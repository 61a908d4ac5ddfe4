package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/userhub/userhub/internal/model"
)

// BulkInsertAuthEvents inserts a batch of audit events in a single round trip.
// Used by the audit worker; events are append-only.
func (r *Repository) BulkInsertAuthEvents(ctx context.Context, events []*model.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(events))
	for _, e := range events {
		var userID *string
		if e.UserID != "" {
			userID = &e.UserID
		}
		rows = append(rows, []any{e.ID, userID, e.Email, e.Kind, e.IPHash, e.OccurredAt})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"auth_events"},
		[]string{"id", "user_id", "email", "kind", "ip_hash", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert auth events: %w", err)
	}

	return nil
}

// CountAuthEvents returns the number of audit events for a user, by kind.
// Pass an empty kind to count all events for the user.
func (r *Repository) CountAuthEvents(ctx context.Context, userID, kind string) (int64, error) {
	query := "SELECT COUNT(*) FROM auth_events WHERE user_id = $1"
	args := []any{userID}

	if kind != "" {
		query += " AND kind = $2"
		args = append(args, kind)
	}

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count auth events: %w", err)
	}

	return count, nil
}
