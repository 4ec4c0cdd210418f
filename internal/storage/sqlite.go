package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"reddit_responder/internal/model"
	"reddit_responder/migrations"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite implements History backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Append inserts a history record. Duplicate post ids are allowed.
func (s *SQLite) Append(ctx context.Context, rec *model.PostRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO post_history (post_id, subreddit, title, template_used, reply_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.PostID, rec.Subreddit, rec.Title, rec.TemplateUsed, rec.ReplyURL,
		rec.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

// Query returns matching records, newest first.
func (s *SQLite) Query(ctx context.Context, q Query) ([]model.PostRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.Subreddit != "" {
		where = append(where, "subreddit = ? COLLATE NOCASE")
		args = append(args, q.Subreddit)
	}
	if q.Template != "" {
		where = append(where, "template_used = ? COLLATE NOCASE")
		args = append(args, q.Template)
	}

	query := `SELECT post_id, subreddit, title, template_used, reply_url, created_at FROM post_history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// Stats aggregates the whole history.
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	st := model.Stats{
		BySubreddit: make(map[string]int),
		ByTemplate:  make(map[string]int),
	}

	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM post_history`,
	).Scan(&st.Total, &first, &last)
	if err != nil {
		return st, fmt.Errorf("query history totals: %w", err)
	}
	if first.Valid {
		t, _ := time.Parse(timeLayout, first.String)
		st.First = &t
	}
	if last.Valid {
		t, _ := time.Parse(timeLayout, last.String)
		st.Last = &t
	}

	if err := s.countBy(ctx, "subreddit", st.BySubreddit); err != nil {
		return st, err
	}
	if err := s.countBy(ctx, "template_used", st.ByTemplate); err != nil {
		return st, err
	}
	return st, nil
}

// countBy fills dst with record counts grouped by column, which must be a
// trusted column name.
func (s *SQLite) countBy(ctx context.Context, column string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM post_history GROUP BY `+column,
	)
	if err != nil {
		return fmt.Errorf("count history by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

// Clear deletes every history record.
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM post_history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (model.PostRecord, error) {
	var r model.PostRecord
	var created string
	if err := row.Scan(&r.PostID, &r.Subreddit, &r.Title, &r.TemplateUsed, &r.ReplyURL, &created); err != nil {
		return r, fmt.Errorf("scan history record: %w", err)
	}
	r.Timestamp, _ = time.Parse(timeLayout, created)
	return r, nil
}

func scanRecords(rows *sql.Rows) ([]model.PostRecord, error) {
	var recs []model.PostRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
