// Package sqlbuild renders the item queries shared by the SQL record stores.
// Callers pick the placeholder format for their driver.
package sqlbuild

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// DefaultTable is the table created by the bundled migrations.
const DefaultTable = "news"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Columns is the scan order used by every item query.
var Columns = []string{
	"id",
	"title",
	"url",
	"summary",
	"source",
	"category",
	"publish_date",
	"crawl_date",
	"content_hash",
}

// TableName validates a configured table name, defaulting when empty.
func TableName(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Builder renders queries for one table and placeholder format.
type Builder struct {
	table string
	sb    sq.StatementBuilderType
}

// New returns a Builder. table must already be validated.
func New(table string, format sq.PlaceholderFormat) Builder {
	return Builder{table: table, sb: sq.StatementBuilder.PlaceholderFormat(format)}
}

// Upsert inserts item under id, or refreshes crawl_date when content_hash
// already exists. Either way the statement returns the stored id.
func (b Builder) Upsert(id string, item news.Item) (string, []any, error) {
	query, args, err := b.sb.Insert(b.table).
		Columns(Columns...).
		Values(
			id,
			item.Title,
			item.URL,
			item.Summary,
			news.BareDomain(item.Source),
			nullCategory(item.Category),
			item.PublishDate,
			item.CrawlDate.UTC(),
			item.ContentHash,
		).
		Suffix("ON CONFLICT (content_hash) DO UPDATE SET crawl_date = EXCLUDED.crawl_date RETURNING id").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build upsert: %w", err)
	}
	return query, args, nil
}

// Get selects one item by id.
func (b Builder) Get(id string) (string, []any, error) {
	query, args, err := b.sb.Select(Columns...).From(b.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build get: %w", err)
	}
	return query, args, nil
}

// Select lists items matching f, newest publish date first with undated items last.
func (b Builder) Select(f news.Filter) (string, []any, error) {
	q := b.sb.Select(Columns...).From(b.table)
	if f.ByID {
		q = applyFilter(q, f).OrderBy("id ASC")
	} else {
		q = applyFilter(q, f).OrderBy("publish_date DESC NULLS LAST", "crawl_date DESC", "id DESC")
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		if f.Limit <= 0 {
			// SQLite only accepts OFFSET after a LIMIT.
			q = q.Limit(uint64(1<<62))
		}
		q = q.Offset(uint64(f.Offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build select: %w", err)
	}
	return query, args, nil
}

// Count counts items matching f, ignoring limit and offset.
func (b Builder) Count(f news.Filter) (string, []any, error) {
	query, args, err := applyFilter(b.sb.Select("COUNT(*)").From(b.table), f).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build count: %w", err)
	}
	return query, args, nil
}

// Update applies the non-nil fields of p to id. p must not be empty.
func (b Builder) Update(id string, p news.Patch) (string, []any, error) {
	set := make(map[string]any, 3)
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Summary != nil {
		set["summary"] = *p.Summary
	}
	if p.Category != nil {
		set["category"] = nullCategory(*p.Category)
	}
	if len(set) == 0 {
		return "", nil, fmt.Errorf("build update: empty patch")
	}
	query, args, err := b.sb.Update(b.table).SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update: %w", err)
	}
	return query, args, nil
}

// Delete removes one item.
func (b Builder) Delete(id string) (string, []any, error) {
	query, args, err := b.sb.Delete(b.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build delete: %w", err)
	}
	return query, args, nil
}

// DeleteUncategorized removes items without a category.
func (b Builder) DeleteUncategorized() (string, []any, error) {
	query, args, err := b.sb.Delete(b.table).
		Where(sq.Or{sq.Eq{"category": nil}, sq.Eq{"category": ""}}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build delete uncategorized: %w", err)
	}
	return query, args, nil
}

// DeleteOlderThan removes items whose crawl date, or publish date when
// byPublishDate is set, is before cutoff. Undated items never match by publish date.
func (b Builder) DeleteOlderThan(cutoff time.Time, byPublishDate bool) (string, []any, error) {
	column := "crawl_date"
	if byPublishDate {
		column = "publish_date"
	}
	query, args, err := b.sb.Delete(b.table).Where(sq.Lt{column: cutoff.UTC()}).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build delete older: %w", err)
	}
	return query, args, nil
}

func applyFilter(q sq.SelectBuilder, f news.Filter) sq.SelectBuilder {
	if needle := strings.ToLower(strings.TrimSpace(f.Query)); needle != "" {
		pattern := "%" + needle + "%"
		q = q.Where(sq.Or{
			sq.Expr("LOWER(title) LIKE ?", pattern),
			sq.Expr("LOWER(COALESCE(summary, '')) LIKE ?", pattern),
		})
	}
	if f.Category != "" {
		q = q.Where(sq.Eq{"category": string(f.Category)})
	}
	if f.Source != "" {
		q = q.Where(sq.Eq{"source": news.BareDomain(f.Source)})
	}
	if f.From != nil {
		q = q.Where(sq.GtOrEq{"publish_date": f.From.UTC()})
	}
	if f.To != nil {
		q = q.Where(sq.LtOrEq{"publish_date": f.To.UTC()})
	}
	if f.Unsummarized {
		q = q.Where(sq.Eq{"summary": nil})
	}
	if f.AfterID != "" {
		q = q.Where(sq.Gt{"id": f.AfterID})
	}
	return q
}

func nullCategory(c news.Category) *string {
	if c == "" {
		return nil
	}
	s := string(c)
	return &s
}
