package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	q Querier
}

// NewProgressRepository creates a repository over a pool or a transaction.
func NewProgressRepository(q Querier) *ProgressRepository {
	return &ProgressRepository{q: q}
}

const progressColumns = `progress_id, user_id, roadmap_id, completed_nodes, started_at, last_updated`

// Get returns the record for the pair.
func (r *ProgressRepository) Get(ctx context.Context, userID, roadmapID string) (*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 AND roadmap_id = $2`

	rec, err := scanRecord(r.q.QueryRow(ctx, query, userID, roadmapID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", translateError(err))
	}
	return rec, nil
}

// ListByUser returns every record of the user, ordered by roadmap id.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 ORDER BY roadmap_id`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", translateError(err))
	}
	defer rows.Close()

	var records []*progress.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress: %w", translateError(err))
	}
	return records, nil
}

// AppendNode adds the node with one conditional upsert. The WHERE clause on
// the conflict branch turns a repeated node into a zero-row update.
func (r *ProgressRepository) AppendNode(ctx context.Context, p progress.AppendParams) (bool, error) {
	query := `
		INSERT INTO user_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, ARRAY[$4::text], $5, $5)
		ON CONFLICT (user_id, roadmap_id) DO UPDATE
		SET completed_nodes = array_append(user_progress.completed_nodes, $4::text),
		    last_updated = EXCLUDED.last_updated
		WHERE NOT ($4::text = ANY(user_progress.completed_nodes))
	`

	tag, err := r.q.Exec(ctx, query, p.ProgressID, p.UserID, p.RoadmapID, p.NodeID, p.At.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to append node: %w", translateError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func scanRecord(row pgx.Row) (*progress.Record, error) {
	var p progress.RestoreParams
	if err := row.Scan(&p.ID, &p.UserID, &p.RoadmapID, &p.CompletedNodes, &p.StartedAt, &p.LastUpdated); err != nil {
		return nil, err
	}
	return progress.Restore(p), nil
}
