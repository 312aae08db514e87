// Package sqlite provides a single-file record store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/storage/sqlbuild"
)

// Config controls how the database is opened.
type Config struct {
	DSN     string
	Table   string
	Migrate bool
}

// Store implements news.Store on SQLite.
type Store struct {
	db  *sql.DB
	ids news.IDGenerator
	q   sqlbuild.Builder
}

var _ news.Store = (*Store)(nil)

// Open connects to the database named by cfg.DSN and optionally applies migrations.
func Open(ctx context.Context, cfg Config, ids news.IDGenerator) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table, err := sqlbuild.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer, and an in-memory database lives on one connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if cfg.Migrate {
		if _, err := Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Store{db: db, ids: ids, q: sqlbuild.New(table, sq.Question)}, nil
}

// Close releases the database handle.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Upsert inserts item or refreshes the crawl date of the row with the same content hash.
func (s *Store) Upsert(ctx context.Context, item news.Item) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}
	return s.upsert(ctx, s.db, item)
}

// UpsertBatch upserts every item inside one transaction.
func (s *Store) UpsertBatch(ctx context.Context, items []news.Item) ([]string, error) {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, 0, len(items))
	for _, item := range items {
		id, err := s.upsert(ctx, tx, item)
		if err != nil {
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return ids, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) upsert(ctx context.Context, db queryRower, item news.Item) (string, error) {
	newID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("assign id: %w", err)
	}
	query, args, err := s.q.Upsert(newID, item)
	if err != nil {
		return "", err
	}
	var id string
	if err := db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert %s: %w", item.URL, err)
	}
	return id, nil
}

// Get returns the item with id.
func (s *Store) Get(ctx context.Context, id string) (news.Item, error) {
	query, args, err := s.q.Get(id)
	if err != nil {
		return news.Item{}, err
	}
	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return news.Item{}, fmt.Errorf("get %s: %w", id, news.ErrNotFound)
	}
	if err != nil {
		return news.Item{}, fmt.Errorf("get %s: %w", id, err)
	}
	return item, nil
}

// Select lists items matching f.
func (s *Store) Select(ctx context.Context, f news.Filter) ([]news.Item, error) {
	query, args, err := s.q.Select(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	items := make([]news.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Count counts items matching f.
func (s *Store) Count(ctx context.Context, f news.Filter) (int, error) {
	query, args, err := s.q.Count(f)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// Update applies the non-nil fields of p.
func (s *Store) Update(ctx context.Context, id string, p news.Patch) error {
	if p.Empty() {
		_, err := s.Get(ctx, id)
		return err
	}
	query, args, err := s.q.Update(id, p)
	if err != nil {
		return err
	}
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", id, news.ErrNotFound)
	}
	return nil
}

// Delete removes id. Deleting a missing item is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	query, args, err := s.q.Delete(id)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// DeleteUncategorized removes items without a category.
func (s *Store) DeleteUncategorized(ctx context.Context) (int, error) {
	query, args, err := s.q.DeleteUncategorized()
	if err != nil {
		return 0, err
	}
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("delete uncategorized: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes items crawled, or published when byPublishDate is set, before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time, byPublishDate bool) (int, error) {
	query, args, err := s.q.DeleteOlderThan(cutoff, byPublishDate)
	if err != nil {
		return 0, err
	}
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("delete older: %w", err)
	}
	return n, nil
}

func (s *Store) exec(ctx context.Context, query string, args []any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (news.Item, error) {
	var (
		item     news.Item
		summary  sql.NullString
		category sql.NullString
		publish  sql.NullTime
	)
	if err := row.Scan(
		&item.ID,
		&item.Title,
		&item.URL,
		&summary,
		&item.Source,
		&category,
		&publish,
		&item.CrawlDate,
		&item.ContentHash,
	); err != nil {
		return news.Item{}, err
	}
	if summary.Valid {
		item.Summary = &summary.String
	}
	item.Category = news.Category(category.String)
	if publish.Valid {
		p := publish.Time.UTC()
		item.PublishDate = &p
	}
	item.CrawlDate = item.CrawlDate.UTC()
	return item, nil
}
