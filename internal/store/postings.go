package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Posting is a persisted job listing. Company, Location, and PostedAt are
// nil when extraction could not determine them. IsNew is true only for rows
// inserted by the most recent reconciliation cycle.
type Posting struct {
	ID         int64      `json:"id"`
	ExternalID string     `json:"external_id"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Company    *string    `json:"company"`
	Location   *string    `json:"location"`
	PostedAt   *time.Time `json:"posted_at"`
	FetchedAt  time.Time  `json:"fetched_at"`
	IsNew      bool       `json:"is_new"`
}

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS postings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_id TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  company TEXT,
  location TEXT,
  posted_at TEXT,
  fetched_at TEXT NOT NULL,
  is_new INTEGER NOT NULL DEFAULT 1
);
`); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_postings_fetched_at
ON postings(fetched_at DESC);
`); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_postings_is_new
ON postings(is_new)
WHERE is_new = 1;
`); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}
	return nil
}

// ExistingIDs reports which of the given external ids are already persisted.
func (d *DB) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}

	args := make([]any, len(ids))
	marks := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		marks[i] = "?"
	}

	rows, err := d.Pool.QueryContext(ctx, `
SELECT external_id FROM postings WHERE external_id IN (`+strings.Join(marks, ",")+`);`, args...)
	if err != nil {
		return nil, &StoreError{Op: "existing_ids", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StoreError{Op: "existing_ids", Err: err}
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "existing_ids", Err: err}
	}
	return seen, nil
}

// UpsertNew persists the postings classified as new and retires the previous
// cycle's is_new flags, all in one transaction. Re-running the same batch is
// harmless: INSERT OR IGNORE skips ids that became seen in the meantime.
// Descriptive fields of existing rows are never amended.
func (d *DB) UpsertNew(ctx context.Context, batch []Posting) (int, error) {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StoreError{Op: "upsert", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	// is_new means "inserted by the most recent cycle", so the previous
	// cycle's marks go first.
	if _, err := tx.ExecContext(ctx, `UPDATE postings SET is_new = 0 WHERE is_new = 1;`); err != nil {
		return 0, &StoreError{Op: "upsert", Err: err}
	}

	now := time.Now().UTC()
	inserted := 0
	for _, p := range batch {
		if !p.IsNew {
			continue
		}
		fetchedAt := p.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = now
		}

		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO postings(external_id, title, url, company, location, posted_at, fetched_at, is_new)
VALUES(?,?,?,?,?,?,?,1);`,
			p.ExternalID,
			p.Title,
			p.URL,
			p.Company,
			p.Location,
			timePtrString(p.PostedAt),
			fetchedAt.Format(time.RFC3339),
		)
		if err != nil {
			return 0, &StoreError{Op: "upsert", Err: err}
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, &StoreError{Op: "upsert", Err: err}
	}
	return inserted, nil
}

type QueryOpts struct {
	Search   string // case-insensitive substring over title/company/location
	Company  string
	Location string
	NewOnly  bool
	Page     int // 1-indexed
	Limit    int
	MaxLimit int // clamp ceiling; 0 means 100
}

// Query returns one page of matching postings, newest first, plus the total
// match count for page-count computation.
func (d *DB) Query(ctx context.Context, opts QueryOpts) ([]Posting, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.Limit <= 0 {
		opts.Limit = 30
	}
	if opts.Limit > opts.MaxLimit {
		opts.Limit = opts.MaxLimit
	}

	where, args := buildFilters(opts)

	var total int
	if err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM postings`+where+`;`, args...).Scan(&total); err != nil {
		return nil, 0, &StoreError{Op: "query", Err: err}
	}

	pageArgs := append(append([]any{}, args...), opts.Limit, (opts.Page-1)*opts.Limit)
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, external_id, title, url, company, location, posted_at, fetched_at, is_new
FROM postings`+where+`
ORDER BY fetched_at DESC, id DESC
LIMIT ? OFFSET ?;`, pageArgs...)
	if err != nil {
		return nil, 0, &StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	out, err := scanPostings(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildFilters(opts QueryOpts) (string, []any) {
	var clauses []string
	var args []any

	if s := strings.TrimSpace(opts.Search); s != "" {
		clauses = append(clauses, `(
  lower(title) LIKE '%' || lower(?) || '%'
  OR lower(COALESCE(company, '')) LIKE '%' || lower(?) || '%'
  OR lower(COALESCE(location, '')) LIKE '%' || lower(?) || '%'
)`)
		args = append(args, s, s, s)
	}
	if c := strings.TrimSpace(opts.Company); c != "" {
		clauses = append(clauses, `lower(COALESCE(company, '')) LIKE '%' || lower(?) || '%'`)
		args = append(args, c)
	}
	if l := strings.TrimSpace(opts.Location); l != "" {
		clauses = append(clauses, `lower(COALESCE(location, '')) LIKE '%' || lower(?) || '%'`)
		args = append(args, l)
	}
	if opts.NewOnly {
		clauses = append(clauses, `is_new = 1`)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(clauses, "\n  AND "), args
}

func scanPostings(rows *sql.Rows) ([]Posting, error) {
	var out []Posting
	for rows.Next() {
		var p Posting
		var company, location, postedAt sql.NullString
		var fetchedAt string
		var isNew int
		if err := rows.Scan(
			&p.ID,
			&p.ExternalID,
			&p.Title,
			&p.URL,
			&company,
			&location,
			&postedAt,
			&fetchedAt,
			&isNew,
		); err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}
		if company.Valid {
			p.Company = &company.String
		}
		if location.Valid {
			p.Location = &location.String
		}
		if postedAt.Valid {
			if t, err := time.Parse(time.RFC3339, postedAt.String); err == nil {
				p.PostedAt = &t
			}
		}
		p.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
		p.IsNew = isNew == 1
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "scan", Err: err}
	}
	return out, nil
}

type Stats struct {
	Total           int        `json:"total_postings"`
	NewCount        int        `json:"new_postings"`
	OldestFetchedAt *time.Time `json:"oldest_fetched_at"`
	NewestFetchedAt *time.Time `json:"newest_fetched_at"`
}

func (d *DB) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var oldest, newest sql.NullString

	err := d.Pool.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(is_new), 0),
       MIN(fetched_at),
       MAX(fetched_at)
FROM postings;`).Scan(&st.Total, &st.NewCount, &oldest, &newest)
	if err != nil {
		return Stats{}, &StoreError{Op: "stats", Err: err}
	}

	if oldest.Valid {
		if t, err := time.Parse(time.RFC3339, oldest.String); err == nil {
			st.OldestFetchedAt = &t
		}
	}
	if newest.Valid {
		if t, err := time.Parse(time.RFC3339, newest.String); err == nil {
			st.NewestFetchedAt = &t
		}
	}
	return st, nil
}

func timePtrString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
