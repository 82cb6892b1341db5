package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// ArticleStatus is the lifecycle state of an article
type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
	StatusArchived  ArticleStatus = "archived"
)

// ValidStatuses defines allowed article statuses
var ValidStatuses = map[ArticleStatus]bool{
	StatusDraft:     true,
	StatusPublished: true,
	StatusArchived:  true,
}

// Categories is the fixed category enumeration, in display order
var Categories = []string{
	"Technology", "Lifestyle", "Travel", "Food", "Health",
	"Business", "Education", "Entertainment", "Sports", "Other",
}

// DefaultCategory is used when no category is supplied
const DefaultCategory = "Other"

const (
	wordsPerMinute   = 200
	summaryLength    = 200
	summaryEllipsis  = "..."
	TitleMinLength   = 5
	TitleMaxLength   = 200
	BodyMinLength    = 10
	SummaryMaxLength = 500
	TagMaxLength     = 50
)

// IsValidCategory reports whether c belongs to the category enumeration
func IsValidCategory(c string) bool {
	for _, cat := range Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// Tags is a tag list stored as a JSONB array
type Tags []string

// Value implements driver.Valuer
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (t *Tags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported tags column type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*t = out
	return nil
}

// ParseTags splits a comma separated tag field, trimming entries and
// dropping empty ones.
func ParseTags(s string) Tags {
	tags := Tags{}
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Article represents a content item
type Article struct {
	ID             string        `json:"id" db:"id"`
	Title          string        `json:"title" db:"title"`
	Body           string        `json:"body" db:"body"`
	Summary        string        `json:"summary" db:"summary"`
	Category       string        `json:"category" db:"category"`
	Tags           Tags          `json:"tags" db:"tags"`
	Status         ArticleStatus `json:"status" db:"status"`
	FeaturedImage  string        `json:"featured_image,omitempty" db:"featured_image"`
	ReadTime       int           `json:"read_time" db:"read_time"`
	Views          int64         `json:"views" db:"views"`
	AuthorID       string        `json:"author_id" db:"author_id"`
	AuthorUsername string        `json:"author_username,omitempty" db:"author_username"`
	CommentCount   int           `json:"comment_count" db:"comment_count"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
	PublishedAt    *time.Time    `json:"published_at,omitempty" db:"published_at"`
}

// IsPublished reports whether the article is publicly visible
func (a *Article) IsPublished() bool {
	return a.Status == StatusPublished
}

// ReadTime estimates reading minutes at 200 words per minute, minimum 1
func ReadTime(body string) int {
	words := len(strings.Fields(body))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// DeriveSummary returns the first 200 characters of body, with an ellipsis
// appended when the body was truncated.
func DeriveSummary(body string) string {
	runes := []rune(body)
	if len(runes) <= summaryLength {
		return body
	}
	return string(runes[:summaryLength]) + summaryEllipsis
}

// PrepareSave applies the derived fields before the article is persisted.
// prev is the stored version for updates and nil for creates.
func (a *Article) PrepareSave(prev *Article, now time.Time) {
	if prev == nil || prev.Body != a.Body {
		a.ReadTime = ReadTime(a.Body)
	}
	if a.Summary == "" && a.Body != "" {
		a.Summary = DeriveSummary(a.Body)
	}
	if prev != nil && prev.PublishedAt != nil {
		a.PublishedAt = prev.PublishedAt
	}
	if a.Status == StatusPublished && a.PublishedAt == nil {
		stamp := now
		a.PublishedAt = &stamp
	}
	if a.Category == "" {
		a.Category = DefaultCategory
	}
	if a.Status == "" {
		a.Status = StatusDraft
	}
	if a.Tags == nil {
		a.Tags = Tags{}
	}
	a.UpdatedAt = now
}

// ArticleInput carries the editable article fields from a form or JSON body
type ArticleInput struct {
	Title       string `json:"title" form:"title"`
	Body        string `json:"body" form:"content"`
	Summary     string `json:"summary" form:"summary"`
	Category    string `json:"category" form:"category"`
	Tags        string `json:"tags" form:"tags"`
	Status      string `json:"status" form:"status"`
	RemoveImage bool   `json:"remove_image" form:"removeImage"`
}

// ArticleFilter selects a page of articles
type ArticleFilter struct {
	Category string
	Search   string
	AuthorID string
	Status   ArticleStatus
	Page     int
	Limit    int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	filterAll = "all"
)

// Normalize clamps paging to page >= 1 and 1 <= limit <= MaxPageSize
func (f *ArticleFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	f.Category = strings.TrimSpace(f.Category)
	f.Search = strings.TrimSpace(f.Search)
	f.AuthorID = strings.TrimSpace(f.AuthorID)
	// "all" is what the listing forms submit for no filter
	if strings.EqualFold(f.Category, filterAll) {
		f.Category = ""
	}
	if strings.EqualFold(string(f.Status), filterAll) {
		f.Status = ""
	}
}

// Offset returns the row offset of the filter's page
func (f ArticleFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes the position of a page within a listing
type Pagination struct {
	Current    int  `json:"current"`
	Total      int  `json:"total"`
	TotalCount int  `json:"total_count"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPagination computes the page block for a listing of total items
func NewPagination(page, limit, total int) Pagination {
	pages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		Current:    page,
		Total:      pages,
		TotalCount: total,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

// ArticlePage is one page of an article listing
type ArticlePage struct {
	Articles   []*Article `json:"articles"`
	Pagination Pagination `json:"pagination"`
	Categories []string   `json:"categories,omitempty"`
	Filter     struct {
		Category string `json:"category,omitempty"`
		Search   string `json:"search,omitempty"`
		Author   string `json:"author,omitempty"`
		Status   string `json:"status,omitempty"`
	} `json:"filters"`
}

// ArticleDetail is a single article with its comments
type ArticleDetail struct {
	Article  *Article   `json:"article"`
	Comments []*Comment `json:"comments"`
}

// ArticleStats summarizes article counts for the dashboard
type ArticleStats struct {
	TotalUsers     int `json:"total_users"`
	TotalArticles  int `json:"total_articles"`
	Published      int `json:"published_articles"`
	Drafts         int `json:"draft_articles"`
	Administrators int `json:"administrators"`
}
