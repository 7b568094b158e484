package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for audit events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertEvent appends one event to audit_log.
func (r *Repository) InsertEvent(ctx context.Context, event Event) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (event, principal, workspace_id, target, provider, decision, role, error_code, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.Name, event.Principal, event.WorkspaceID,
		optionalText(event.Target), optionalText(event.Provider), event.Decision,
		optionalText(event.Role), optionalText(event.ErrorCode), event.At)
	return err
}

// TimelineWindow returns one page of events, newest first. It fetches one row
// beyond the page size so the service can detect a next page.
func (r *Repository) TimelineWindow(ctx context.Context, f Filters, offset, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event, principal, workspace_id, target, provider, decision, role, error_code, occurred_at
		 FROM audit_log
		 WHERE workspace_id = $1
		   AND ($2::text IS NULL OR principal = $2)
		   AND ($3::text IS NULL OR event = $3)
		   AND ($4::timestamptz IS NULL OR occurred_at >= $4)
		   AND ($5::timestamptz IS NULL OR occurred_at < $5)
		 ORDER BY occurred_at DESC
		 OFFSET $6 LIMIT $7`,
		f.WorkspaceID, optionalText(f.Principal), optionalText(f.Event),
		optionalTime(f.From), optionalTime(f.To), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			target    pgtype.Text
			provider  pgtype.Text
			role      pgtype.Text
			errorCode pgtype.Text
		)
		if err := rows.Scan(&event.Name, &event.Principal, &event.WorkspaceID,
			&target, &provider, &event.Decision, &role, &errorCode, &event.At); err != nil {
			return nil, err
		}
		event.Target = target.String
		event.Provider = provider.String
		event.Role = role.String
		event.ErrorCode = errorCode.String
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteOlderThan prunes events past the retention horizon. Used by the
// background worker, never by the request path.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_log WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
