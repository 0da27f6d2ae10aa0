package heightlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schema is the SQLite schema of the height report log.
const Schema = `
CREATE TABLE IF NOT EXISTS height_reports (
    id          TEXT PRIMARY KEY,
    origin      TEXT NOT NULL DEFAULT '',
    height      INTEGER NOT NULL,
    is_expanded INTEGER NOT NULL DEFAULT 0,
    client_ts   INTEGER NOT NULL DEFAULT 0,
    received_at INTEGER NOT NULL,
    user_agent  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_height_reports_received ON height_reports(received_at DESC);
CREATE INDEX IF NOT EXISTS idx_height_reports_origin ON height_reports(origin, received_at DESC);
`

// Report is one stored height report. Timestamps are epoch milliseconds.
type Report struct {
	ID         string `json:"id"`
	Origin     string `json:"origin"`
	Height     int    `json:"height"`
	IsExpanded bool   `json:"isExpanded"`
	ClientTS   int64  `json:"clientTs"`
	ReceivedAt int64  `json:"receivedAt"`
	UserAgent  string `json:"userAgent,omitempty"`
}

// Filter narrows Recent. Zero values mean no constraint.
type Filter struct {
	Origin string
	Since  time.Time
	Limit  int
	Offset int
}

// Store persists reports.
type Store struct {
	db *sql.DB
}

// NewStore wraps db. The schema must already be applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert stores r. A report whose id is already stored is ignored and
// inserted is false; beacons are never retried, so a duplicate is a replay.
func (s *Store) Insert(ctx context.Context, r Report) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO height_reports (id, origin, height, is_expanded, client_ts, received_at, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Origin, r.Height, boolInt(r.IsExpanded), r.ClientTS, r.ReceivedAt, r.UserAgent,
	)
	if err != nil {
		return false, fmt.Errorf("heightlog: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heightlog: insert: %w", err)
	}
	return n == 1, nil
}

// Recent returns reports newest first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Report, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	var since int64
	if !f.Since.IsZero() {
		since = f.Since.UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, origin, height, is_expanded, client_ts, received_at, user_agent
		 FROM height_reports
		 WHERE (? = '' OR origin = ?) AND received_at >= ?
		 ORDER BY received_at DESC, id DESC LIMIT ? OFFSET ?`,
		f.Origin, f.Origin, since, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("heightlog: query: %w", err)
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		var r Report
		var expanded int
		if err := rows.Scan(&r.ID, &r.Origin, &r.Height, &expanded, &r.ClientTS, &r.ReceivedAt, &r.UserAgent); err != nil {
			return nil, fmt.Errorf("heightlog: scan: %w", err)
		}
		r.IsExpanded = expanded == 1
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("heightlog: rows: %w", err)
	}
	return out, nil
}

// Purge deletes reports received before cutoff and returns how many went.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM height_reports WHERE received_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("heightlog: purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Count returns the number of stored reports.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM height_reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("heightlog: count: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
