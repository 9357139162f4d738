// Package catalog declares every table the service owns: its cache domain,
// its stats domain, its default order and the columns dashboards may group by.
package catalog

import (
	"github.com/xavierca1/firm-backoffice/internal/accessor"
	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/querycache"
	"github.com/xavierca1/firm-backoffice/internal/store"
)

const (
	TableCandidates         = "candidates"
	TableInterviews         = "interviews"
	TableEmployees          = "employees"
	TablePayroll            = "payroll_entries"
	TableNotifications      = "notifications"
	TableContactSubmissions = "contact_submissions"
	TableCompanySetupLeads  = "company_setup_leads"
	TableBeckhamLawLeads    = "beckham_law_leads"
	TableLeadHistory        = "lead_history"
	TableWhistleblower      = "whistleblower_reports"
	TableBlogPosts          = "blog_posts"
	TableNewsArticles       = "news_articles"
	TableBlogQueue          = "blog_generation_queue"
	TableNewsQueue          = "news_generation_queue"
	TableBlogSettings       = "blog_automation_settings"
	TableNewsSettings       = "news_automation_settings"
	TableSitePages          = "site_pages"
	TablePresentations      = "presentations"
)

var newestFirst = []store.Order{{Column: "created_at", Desc: true}}

type (
	LeadResource    = accessor.Resource[entity.Lead, entity.LeadFilter]
	QueueResource   = accessor.Resource[entity.QueueItem, entity.QueueFilter]
	ArticleResource = accessor.Resource[entity.Article, entity.ArticleFilter]
	SettingsStore   = accessor.Singleton[entity.AutomationSettings]
)

type Catalog struct {
	Candidates    *accessor.Resource[entity.Candidate, entity.CandidateFilter]
	Interviews    *accessor.Resource[entity.Interview, entity.InterviewFilter]
	Employees     *accessor.Resource[entity.Employee, entity.EmployeeFilter]
	Payroll       *accessor.Resource[entity.PayrollEntry, entity.PayrollFilter]
	Notifications *accessor.Resource[entity.Notification, entity.NotificationFilter]

	ContactSubmissions *LeadResource
	CompanySetupLeads  *LeadResource
	BeckhamLawLeads    *LeadResource
	LeadHistory        *accessor.Resource[entity.LeadHistory, entity.LeadHistoryFilter]

	Whistleblower *accessor.Resource[entity.WhistleblowerReport, entity.WhistleblowerFilter]

	BlogPosts    *ArticleResource
	NewsArticles *ArticleResource
	BlogQueue    *QueueResource
	NewsQueue    *QueueResource
	BlogSettings *SettingsStore
	NewsSettings *SettingsStore

	SitePages     *accessor.Resource[entity.SitePage, entity.SitePageFilter]
	Presentations *accessor.Resource[entity.Presentation, entity.PresentationFilter]
}

func New(deps accessor.Deps) *Catalog {
	leadTable := func(name string, d querycache.Domain) accessor.Table {
		return accessor.Table{
			Name:         name,
			Domain:       d,
			StatsDomain:  querycache.LeadStats,
			DefaultOrder: newestFirst,
			Groupable:    []string{"status", "priority", "source", "service", "country"},
		}
	}
	articleTable := func(name string, d querycache.Domain) accessor.Table {
		return accessor.Table{
			Name:         name,
			Domain:       d,
			DefaultOrder: []store.Order{{Column: "scheduled_for", Desc: true}, {Column: "created_at", Desc: true}},
			Groupable:    []string{"status", "category", "language"},
		}
	}
	queueTable := func(name string, d querycache.Domain) accessor.Table {
		return accessor.Table{
			Name:         name,
			Domain:       d,
			StatsDomain:  querycache.QueueStats,
			DefaultOrder: []store.Order{{Column: "created_at"}},
			Groupable:    []string{"status", "language"},
		}
	}

	return &Catalog{
		Candidates: accessor.New[entity.Candidate, entity.CandidateFilter](deps, accessor.Table{
			Name:         TableCandidates,
			Domain:       querycache.Candidates,
			StatsDomain:  querycache.CandidateStats,
			DefaultOrder: newestFirst,
			Groupable:    []string{"status", "position", "source"},
		}),
		Interviews: accessor.New[entity.Interview, entity.InterviewFilter](deps, accessor.Table{
			Name:         TableInterviews,
			Domain:       querycache.Interviews,
			StatsDomain:  querycache.InterviewStats,
			DefaultOrder: []store.Order{{Column: "scheduled_at"}},
			Groupable:    []string{"status", "kind", "interviewer"},
		}),
		Employees: accessor.New[entity.Employee, entity.EmployeeFilter](deps, accessor.Table{
			Name:         TableEmployees,
			Domain:       querycache.Employees,
			StatsDomain:  querycache.EmployeeStats,
			DefaultOrder: []store.Order{{Column: "full_name"}},
			Groupable:    []string{"department", "position", "active"},
		}),
		Payroll: accessor.New[entity.PayrollEntry, entity.PayrollFilter](deps, accessor.Table{
			Name:         TablePayroll,
			Domain:       querycache.Payroll,
			StatsDomain:  querycache.PayrollStats,
			DefaultOrder: []store.Order{{Column: "period", Desc: true}, {Column: "created_at", Desc: true}},
			Groupable:    []string{"status", "period", "employee_id"},
		}),
		Notifications: accessor.New[entity.Notification, entity.NotificationFilter](deps, accessor.Table{
			Name:         TableNotifications,
			Domain:       querycache.Notifications,
			DefaultOrder: newestFirst,
			Groupable:    []string{"kind", "read"},
		}),

		ContactSubmissions: accessor.New[entity.Lead, entity.LeadFilter](deps, leadTable(TableContactSubmissions, querycache.ContactSubmissions)),
		CompanySetupLeads:  accessor.New[entity.Lead, entity.LeadFilter](deps, leadTable(TableCompanySetupLeads, querycache.CompanySetupLeads)),
		BeckhamLawLeads:    accessor.New[entity.Lead, entity.LeadFilter](deps, leadTable(TableBeckhamLawLeads, querycache.BeckhamLawLeads)),
		LeadHistory: accessor.New[entity.LeadHistory, entity.LeadHistoryFilter](deps, accessor.Table{
			Name:         TableLeadHistory,
			Domain:       querycache.LeadHistory,
			DefaultOrder: newestFirst,
		}),

		Whistleblower: accessor.New[entity.WhistleblowerReport, entity.WhistleblowerFilter](deps, accessor.Table{
			Name:         TableWhistleblower,
			Domain:       querycache.WhistleblowerReports,
			StatsDomain:  querycache.WhistleblowerStats,
			DefaultOrder: newestFirst,
			Groupable:    []string{"status", "category", "priority"},
		}),

		BlogPosts:    accessor.New[entity.Article, entity.ArticleFilter](deps, articleTable(TableBlogPosts, querycache.BlogPosts)),
		NewsArticles: accessor.New[entity.Article, entity.ArticleFilter](deps, articleTable(TableNewsArticles, querycache.NewsArticles)),
		BlogQueue:    accessor.New[entity.QueueItem, entity.QueueFilter](deps, queueTable(TableBlogQueue, querycache.BlogQueue)),
		NewsQueue:    accessor.New[entity.QueueItem, entity.QueueFilter](deps, queueTable(TableNewsQueue, querycache.NewsQueue)),
		BlogSettings: accessor.NewSingleton[entity.AutomationSettings](deps, TableBlogSettings, querycache.BlogSettings, entity.DefaultAutomationSettings),
		NewsSettings: accessor.NewSingleton[entity.AutomationSettings](deps, TableNewsSettings, querycache.NewsSettings, entity.DefaultAutomationSettings),

		SitePages: accessor.New[entity.SitePage, entity.SitePageFilter](deps, accessor.Table{
			Name:         TableSitePages,
			Domain:       querycache.SitePages,
			DefaultOrder: []store.Order{{Column: "path"}},
			Groupable:    []string{"kind", "language", "published"},
		}),
		Presentations: accessor.New[entity.Presentation, entity.PresentationFilter](deps, accessor.Table{
			Name:         TablePresentations,
			Domain:       querycache.Presentations,
			DefaultOrder: newestFirst,
			Groupable:    []string{"published"},
		}),
	}
}

func (c *Catalog) Leads(kind entity.LeadKind) (*LeadResource, bool) {
	switch kind {
	case entity.LeadKindContact:
		return c.ContactSubmissions, true
	case entity.LeadKindCompanySetup:
		return c.CompanySetupLeads, true
	case entity.LeadKindBeckhamLaw:
		return c.BeckhamLawLeads, true
	}
	return nil, false
}

func (c *Catalog) Queue(kind entity.QueueKind) (*QueueResource, bool) {
	switch kind {
	case entity.QueueBlog:
		return c.BlogQueue, true
	case entity.QueueNews:
		return c.NewsQueue, true
	}
	return nil, false
}

func (c *Catalog) Settings(kind entity.QueueKind) (*SettingsStore, bool) {
	switch kind {
	case entity.QueueBlog:
		return c.BlogSettings, true
	case entity.QueueNews:
		return c.NewsSettings, true
	}
	return nil, false
}
