package news

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Category is one value of the fixed article taxonomy.
type Category string

// Supported categories.
const (
	CategoryPolitics      Category = "politics"
	CategoryEconomy       Category = "economy"
	CategoryBusiness      Category = "business"
	CategoryTechnology    Category = "technology"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryInternational Category = "international"
	CategoryNational      Category = "national"
)

// Categories lists the taxonomy in display order.
var Categories = []Category{
	CategoryPolitics,
	CategoryEconomy,
	CategoryBusiness,
	CategoryTechnology,
	CategorySports,
	CategoryEntertainment,
	CategoryHealth,
	CategoryInternational,
	CategoryNational,
}

// ParseCategory maps a raw string onto the taxonomy.
func ParseCategory(raw string) (Category, bool) {
	needle := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, c := range Categories {
		if c == needle {
			return c, true
		}
	}
	return "", false
}

// Item is one discovered article.
type Item struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Summary     *string    `json:"summary"`
	Source      string     `json:"source"`
	Category    Category   `json:"category,omitempty"`
	PublishDate *time.Time `json:"publish_date"`
	CrawlDate   time.Time  `json:"crawl_date"`
	ContentHash string     `json:"content_hash"`
}

// Validate checks the fields every store requires before writing.
func (i Item) Validate() error {
	switch {
	case strings.TrimSpace(i.Title) == "":
		return errors.New("item title is required")
	case i.URL == "":
		return errors.New("item url is required")
	case i.ContentHash == "":
		return errors.New("item content hash is required")
	}
	return nil
}

// Summarized reports whether the item already carries a summary.
func (i Item) Summarized() bool {
	return i.Summary != nil
}

// Filter narrows Select and Count queries. Zero values disable a clause; Limit 0 means unbounded.
type Filter struct {
	Query        string
	Category     Category
	Source       string
	From         *time.Time
	To           *time.Time
	Unsummarized bool
	// AfterID keeps only ids greater than it. With ByID it is a keyset
	// cursor that stays stable while matching rows disappear.
	AfterID string
	// ByID orders ascending by id instead of by date.
	ByID   bool
	Limit  int
	Offset int
}

// Patch lists the mutable fields of an item. Nil fields are left untouched.
type Patch struct {
	Title    *string
	Summary  *string
	Category *Category
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Summary == nil && p.Category == nil
}

// Entry is a live priority queue member.
type Entry struct {
	ID    string
	Score int
}

// RetryState is the per-item record kept while an item waits for another attempt.
type RetryState struct {
	Score     int       `json:"score"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"-"`
}

// FailedEntry pairs an item id with its retry state.
type FailedEntry struct {
	ID string
	RetryState
}

// Page is a fetched HTTP document.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the page came back with a 2xx status.
func (p Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}
