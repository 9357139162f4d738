package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/catalog"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/infra/http/middleware"
	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

type RouterConfig struct {
	Catalog       *catalog.Catalog
	Contact       *usecase.SubmitContactUseCase
	Whistleblower *usecase.WhistleblowerUseCase
	LeadStatus    *usecase.ChangeLeadStatusUseCase
	Calendar      *usecase.EditorialCalendarUseCase
	Queues        map[entity.QueueKind]*usecase.GenerationQueue
	Health        *HealthHandler

	AdminToken     string
	CORSOrigins    []string
	// PublicThrottle limits /public per client IP. Nil disables it.
	PublicThrottle *middleware.Throttler
	Logger         logrus.FieldLogger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := cfg.Catalog

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Handle)
	}

	public := NewPublicHandler(cfg.Contact, cfg.Whistleblower, log)
	r.Route("/public", func(r chi.Router) {
		r.Use(cfg.PublicThrottle.Handler)
		r.Post("/contact", public.SubmitContact)
		r.Post("/whistleblower", public.SubmitWhistleblower)
		r.Get("/whistleblower/{code}", public.LookupWhistleblower)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AdminToken))

		r.Mount("/leads", NewLeadHandler(c, cfg.LeadStatus, log).Routes())
		r.Mount("/queues", NewQueueHandler(c, cfg.Queues, log).Routes())

		settings := NewSettingsHandler(c, log)
		r.Get("/settings/{kind}", settings.Get)
		r.Put("/settings/{kind}", settings.Put)

		r.Get("/calendar", NewCalendarHandler(cfg.Calendar, log).Get)

		r.Mount("/candidates", NewResourceHandler(c.Candidates, log).Routes())
		r.Mount("/interviews", NewResourceHandler(c.Interviews, log).Routes())
		r.Mount("/employees", NewResourceHandler(c.Employees, log).Routes())
		r.Mount("/payroll", NewResourceHandler(c.Payroll, log).Routes())
		r.Mount("/notifications", NewResourceHandler(c.Notifications, log).Routes())

		// Reports are filed through /public only; staff triage them here.
		reports := NewResourceHandler(c.Whistleblower, log).Immutable("tracking_code")
		reportRoutes := reports.ReadOnly().Routes()
		reportRoutes.Patch("/{id}", reports.Update)
		r.Mount("/whistleblower", reportRoutes)

		r.Mount("/blog-posts", NewResourceHandler(c.BlogPosts, log).Routes())
		r.Mount("/news-articles", NewResourceHandler(c.NewsArticles, log).Routes())
		r.Mount("/site-pages", NewResourceHandler(c.SitePages, log).Routes())
		r.Mount("/presentations", NewResourceHandler(c.Presentations, log).Routes())
	})

	return r
}
