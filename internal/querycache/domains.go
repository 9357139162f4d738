package querycache

// Domain names a family of cached reads. A write to a table invalidates every
// read of its domain plus the related domains declared below.
type Domain string

const (
	Candidates     Domain = "candidates"
	CandidateStats Domain = "candidate_stats"
	Interviews     Domain = "interviews"
	InterviewStats Domain = "interview_stats"
	Employees      Domain = "employees"
	EmployeeStats  Domain = "employee_stats"
	Payroll        Domain = "payroll"
	PayrollStats   Domain = "payroll_stats"

	ContactSubmissions Domain = "contact_submissions"
	CompanySetupLeads  Domain = "company_setup_leads"
	BeckhamLawLeads    Domain = "beckham_law_leads"
	LeadStats          Domain = "lead_stats"
	LeadHistory        Domain = "lead_history"

	WhistleblowerReports Domain = "whistleblower_reports"
	WhistleblowerStats   Domain = "whistleblower_stats"

	Notifications Domain = "notifications"

	BlogPosts    Domain = "blog_posts"
	NewsArticles Domain = "news_articles"
	Calendar     Domain = "editorial_calendar"

	BlogQueue  Domain = "blog_queue"
	NewsQueue  Domain = "news_queue"
	QueueStats Domain = "queue_stats"

	BlogSettings Domain = "blog_settings"
	NewsSettings Domain = "news_settings"

	SitePages     Domain = "site_pages"
	Presentations Domain = "presentations"
)

// invalidationGraph is the single declaration of which cached domains a write
// to a domain makes stale. A domain always invalidates itself; only the
// related domains are listed.
var invalidationGraph = map[Domain][]Domain{
	Candidates: {CandidateStats, Interviews},
	Interviews: {InterviewStats, CandidateStats},
	Employees:  {EmployeeStats, Payroll, PayrollStats},
	Payroll:    {PayrollStats},

	ContactSubmissions: {LeadStats},
	CompanySetupLeads:  {LeadStats, LeadHistory},
	BeckhamLawLeads:    {LeadStats, LeadHistory},
	LeadHistory:        {},

	WhistleblowerReports: {WhistleblowerStats},

	Notifications: {},

	BlogPosts:    {Calendar},
	NewsArticles: {Calendar},

	BlogQueue: {QueueStats},
	NewsQueue: {QueueStats},

	BlogSettings: {},
	NewsSettings: {},

	SitePages:     {},
	Presentations: {},
}

var allDomains = []Domain{
	Candidates, CandidateStats, Interviews, InterviewStats, Employees, EmployeeStats, Payroll, PayrollStats,
	ContactSubmissions, CompanySetupLeads, BeckhamLawLeads, LeadStats, LeadHistory,
	WhistleblowerReports, WhistleblowerStats,
	Notifications,
	BlogPosts, NewsArticles, Calendar,
	BlogQueue, NewsQueue, QueueStats,
	BlogSettings, NewsSettings,
	SitePages, Presentations,
}

// All returns every domain, for flushing the whole cache.
func All() []Domain {
	return append([]Domain(nil), allDomains...)
}

// Dependents returns d followed by every domain a write to d invalidates.
func Dependents(d Domain) []Domain {
	related := invalidationGraph[d]
	out := make([]Domain, 0, len(related)+1)
	out = append(out, d)
	out = append(out, related...)
	return out
}
