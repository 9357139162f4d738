package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/querycache"
)

type CalendarEntry struct {
	Kind         entity.QueueKind     `json:"kind"`
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Slug         string               `json:"slug"`
	Status       entity.ArticleStatus `json:"status"`
	ScheduledFor time.Time            `json:"scheduled_for"`
}

type CalendarDay struct {
	Date    string          `json:"date"`
	Entries []CalendarEntry `json:"entries"`
}

// EditorialCalendarUseCase merges scheduled blog posts and news articles into
// one day-by-day view.
type EditorialCalendarUseCase struct {
	catalog *catalog.Catalog
	cache   *querycache.Cache
}

func NewEditorialCalendarUseCase(c *catalog.Catalog, cache *querycache.Cache) *EditorialCalendarUseCase {
	return &EditorialCalendarUseCase{catalog: c, cache: cache}
}

func (uc *EditorialCalendarUseCase) Execute(ctx context.Context, from, to time.Time) ([]CalendarDay, error) {
	if to.Before(from) {
		return nil, ValidationErrors{{Field: "to", Message: "must not be before from"}}
	}

	key := from.UTC().Format(time.RFC3339) + "/" + to.UTC().Format(time.RFC3339)
	v, err := uc.cache.Load(ctx, querycache.Calendar, key, func(ctx context.Context) (any, error) {
		filter := entity.ArticleFilter{From: &from, To: &to}
		posts, err := uc.catalog.BlogPosts.Find(ctx, filter.Predicates(), 0)
		if err != nil {
			return nil, err
		}
		news, err := uc.catalog.NewsArticles.Find(ctx, filter.Predicates(), 0)
		if err != nil {
			return nil, err
		}
		return buildCalendar(posts, news), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]CalendarDay), nil
}

func buildCalendar(posts, news []entity.Article) []CalendarDay {
	var entries []CalendarEntry
	add := func(kind entity.QueueKind, articles []entity.Article) {
		for _, a := range articles {
			if a.ScheduledFor == nil {
				continue
			}
			entries = append(entries, CalendarEntry{
				Kind:         kind,
				ID:           a.ID,
				Title:        a.Title,
				Slug:         a.Slug,
				Status:       a.Status,
				ScheduledFor: a.ScheduledFor.UTC(),
			})
		}
	}
	add(entity.QueueBlog, posts)
	add(entity.QueueNews, news)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ScheduledFor.Before(entries[j].ScheduledFor)
	})

	days := []CalendarDay{}
	for _, e := range entries {
		date := e.ScheduledFor.Format("2006-01-02")
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].Entries = append(days[n-1].Entries, e)
			continue
		}
		days = append(days, CalendarDay{Date: date, Entries: []CalendarEntry{e}})
	}
	return days
}
