package querycache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDependentsStartWithOwnDomain(t *testing.T) {
	for d := range invalidationGraph {
		deps := Dependents(d)
		assert.Equal(t, d, deps[0], "domain %s", d)
	}
}

// The declared sets, asserted literally.
func TestDependentsDeclaredSets(t *testing.T) {
	cases := map[Domain][]Domain{
		Candidates:           {Candidates, CandidateStats, Interviews},
		Interviews:           {Interviews, InterviewStats, CandidateStats},
		Employees:            {Employees, EmployeeStats, Payroll, PayrollStats},
		Payroll:              {Payroll, PayrollStats},
		ContactSubmissions:   {ContactSubmissions, LeadStats},
		CompanySetupLeads:    {CompanySetupLeads, LeadStats, LeadHistory},
		BeckhamLawLeads:      {BeckhamLawLeads, LeadStats, LeadHistory},
		WhistleblowerReports: {WhistleblowerReports, WhistleblowerStats},
		BlogQueue:            {BlogQueue, QueueStats},
		NewsQueue:            {NewsQueue, QueueStats},
		BlogPosts:            {BlogPosts, Calendar},
		NewsArticles:         {NewsArticles, Calendar},
		BlogSettings:         {BlogSettings},
		Notifications:        {Notifications},
	}

	for d, want := range cases {
		assert.Equal(t, want, Dependents(d), "domain %s", d)
	}
}

// Every stats domain must be reachable from a write domain of the same family.
func TestEveryStatsDomainIsInvalidatedBySomeWrite(t *testing.T) {
	stats := []Domain{CandidateStats, InterviewStats, EmployeeStats, PayrollStats, LeadStats, WhistleblowerStats, QueueStats}

	for _, s := range stats {
		found := false
		for d, related := range invalidationGraph {
			if strings.HasSuffix(string(d), "_stats") {
				continue
			}
			for _, r := range related {
				if r == s {
					found = true
				}
			}
		}
		assert.True(t, found, "stats domain %s is never invalidated", s)
	}
}

func TestDependentsOfUnknownDomain(t *testing.T) {
	assert.Equal(t, []Domain{"unknown"}, Dependents("unknown"))
}

func TestAllCoversTheGraph(t *testing.T) {
	all := All()
	for d, related := range invalidationGraph {
		assert.Contains(t, all, d)
		for _, r := range related {
			assert.Contains(t, all, r)
		}
	}

	all[0] = "mutated"
	assert.Equal(t, Candidates, All()[0])
}
