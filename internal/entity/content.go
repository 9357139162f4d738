package entity

import (
	"time"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticleScheduled ArticleStatus = "scheduled"
	ArticlePublished ArticleStatus = "published"
	ArticleArchived  ArticleStatus = "archived"
)

// Article is the shape of both blog posts and news articles.
type Article struct {
	ID           string        `json:"id,omitempty"`
	Title        string        `json:"title" validate:"required,max=300"`
	Slug         string        `json:"slug" validate:"required,max=300"`
	Excerpt      string        `json:"excerpt,omitempty" validate:"omitempty,max=1000"`
	Content      string        `json:"content,omitempty"`
	Category     string        `json:"category,omitempty" validate:"omitempty,max=80"`
	Language     string        `json:"language" validate:"omitempty,len=2"`
	Status       ArticleStatus `json:"status" validate:"omitempty,oneof=draft scheduled published archived"`
	Author       string        `json:"author,omitempty"`
	CoverURL     string        `json:"cover_url,omitempty" validate:"omitempty,url"`
	ScheduledFor *time.Time    `json:"scheduled_for,omitempty"`
	PublishedAt  *time.Time    `json:"published_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (a *Article) ApplyDefaults() {
	if a.Status == "" {
		a.Status = ArticleDraft
	}
	if a.Language == "" {
		a.Language = "es"
	}
}

type ArticleFilter struct {
	Status   ArticleStatus `json:"status,omitempty"`
	Category string        `json:"category,omitempty"`
	Language string        `json:"language,omitempty"`
	Search   string        `json:"search,omitempty"`
	From     *time.Time    `json:"from,omitempty"`
	To       *time.Time    `json:"to,omitempty"`
}

func (f ArticleFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Status != "" {
		preds = append(preds, store.Eq("status", string(f.Status)))
	}
	if f.Category != "" {
		preds = append(preds, store.Eq("category", f.Category))
	}
	if f.Language != "" {
		preds = append(preds, store.Eq("language", f.Language))
	}
	if f.Search != "" {
		preds = append(preds, store.Search(f.Search, "title", "excerpt"))
	}
	return append(preds, store.Range("scheduled_for", f.From, f.To)...)
}

type PageKind string

const (
	PageLanding PageKind = "landing"
	PageStatic  PageKind = "static"
)

// SitePage is a landing page or static route; published pages make up the sitemap.
type SitePage struct {
	ID         string    `json:"id,omitempty"`
	Path       string    `json:"path" validate:"required,startswith=/,max=300"`
	Title      string    `json:"title" validate:"required,max=300"`
	Kind       PageKind  `json:"kind" validate:"required,oneof=landing static"`
	Language   string    `json:"language" validate:"omitempty,len=2"`
	Published  bool      `json:"published"`
	ChangeFreq string    `json:"change_freq,omitempty" validate:"omitempty,oneof=always hourly daily weekly monthly yearly never"`
	Priority   float64   `json:"priority" validate:"gte=0,lte=1"`
	Body       string    `json:"body,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SitePageFilter struct {
	Kind      PageKind `json:"kind,omitempty"`
	Language  string   `json:"language,omitempty"`
	Published *bool    `json:"published,omitempty"`
	Search    string   `json:"search,omitempty"`
}

func (f SitePageFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Kind != "" {
		preds = append(preds, store.Eq("kind", string(f.Kind)))
	}
	if f.Language != "" {
		preds = append(preds, store.Eq("language", f.Language))
	}
	if f.Published != nil {
		preds = append(preds, store.Eq("published", *f.Published))
	}
	if f.Search != "" {
		preds = append(preds, store.Search(f.Search, "path", "title"))
	}
	return preds
}

type Presentation struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title" validate:"required,max=300"`
	Slug        string    `json:"slug" validate:"required,max=300"`
	Description string    `json:"description,omitempty"`
	FileURL     string    `json:"file_url" validate:"required,url"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PresentationFilter struct {
	Published *bool  `json:"published,omitempty"`
	Search    string `json:"search,omitempty"`
}

func (f PresentationFilter) Predicates() []store.Predicate {
	var preds []store.Predicate
	if f.Published != nil {
		preds = append(preds, store.Eq("published", *f.Published))
	}
	if f.Search != "" {
		preds = append(preds, store.Search(f.Search, "title", "description"))
	}
	return preds
}
