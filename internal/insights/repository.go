package insights

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Summarize(ctx context.Context, workspaceID int64, window Window) (*Summary, error) {
	summary := &Summary{
		WorkspaceID: workspaceID,
		Window:      window,
		ComputedAt:  time.Now().UTC(),
	}

	rows, err := r.pool.Query(ctx, `
		SELECT source, count(*)
		FROM ingest_events
		WHERE workspace_id = $1 AND received_at >= $2 AND received_at < $3
		GROUP BY source
		ORDER BY count(*) DESC, source`,
		workspaceID, window.From, window.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, err
		}
		summary.BySource = append(summary.BySource, sc)
		summary.TotalEvents += sc.Count
	}
	return summary, rows.Err()
}
