// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/newsdigest/internal/id/uuid"
	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/storage/sqlbuild"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	Migrate         bool
}

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements news.Store on Postgres.
type Store struct {
	pool Pool
	ids  news.IDGenerator
	q    sqlbuild.Builder
}

var _ news.Store = (*Store)(nil)

// New connects a pool using cfg, running migrations first when cfg.Migrate is set.
func New(ctx context.Context, cfg Config, ids news.IDGenerator) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table, err := sqlbuild.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if _, err := Migrate(cfg.DSN); err != nil {
			return nil, err
		}
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, ids: ids, q: sqlbuild.New(table, sq.Dollar)}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool Pool, table string, ids news.IDGenerator) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := sqlbuild.TableName(table)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, ids: ids, q: sqlbuild.New(name, sq.Dollar)}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Upsert inserts item or refreshes the crawl date of the row with the same content hash.
func (s *Store) Upsert(ctx context.Context, item news.Item) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}
	return s.upsert(ctx, s.pool, item)
}

// UpsertBatch upserts every item inside one transaction.
func (s *Store) UpsertBatch(ctx context.Context, items []news.Item) ([]string, error) {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(items))
	for _, item := range items {
		id, err := s.upsert(ctx, tx, item)
		if err != nil {
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return ids, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
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
	if err := db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert %s: %w", item.URL, err)
	}
	return id, nil
}

// Get returns the item with id.
func (s *Store) Get(ctx context.Context, id string) (news.Item, error) {
	if !uuid.Valid(id) {
		return news.Item{}, fmt.Errorf("get %s: %w", id, news.ErrNotFound)
	}
	query, args, err := s.q.Get(id)
	if err != nil {
		return news.Item{}, err
	}
	item, err := scanItem(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx, query, args...)
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
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return int(n), nil
}

// Update applies the non-nil fields of p.
func (s *Store) Update(ctx context.Context, id string, p news.Patch) error {
	if !uuid.Valid(id) {
		return fmt.Errorf("update %s: %w", id, news.ErrNotFound)
	}
	if p.Empty() {
		_, err := s.Get(ctx, id)
		return err
	}
	query, args, err := s.q.Update(id, p)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", id, news.ErrNotFound)
	}
	return nil
}

// Delete removes id. Deleting a missing item is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if !uuid.Valid(id) {
		return nil
	}
	query, args, err := s.q.Delete(id)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
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
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete uncategorized: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteOlderThan removes items crawled, or published when byPublishDate is set, before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time, byPublishDate bool) (int, error) {
	query, args, err := s.q.DeleteOlderThan(cutoff, byPublishDate)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete older: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanItem(row pgx.Row) (news.Item, error) {
	var (
		item     news.Item
		summary  *string
		category *string
		publish  *time.Time
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
	item.Summary = summary
	if category != nil {
		item.Category = news.Category(*category)
	}
	if publish != nil {
		p := publish.UTC()
		item.PublishDate = &p
	}
	item.CrawlDate = item.CrawlDate.UTC()
	return item, nil
}
