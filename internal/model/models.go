// internal/model/models.go
package model

// RepoFields holds the per-repository slice of the profile summary. Absent
// upstream values take the zero/null defaults; values that are present but
// zero or empty are preserved as-is.
type RepoFields struct {
	Description    *string  `json:"description"`
	Stars          int      `json:"stars"`
	Forks          int      `json:"forks"`
	Issues         int      `json:"issues"`
	Watchers       int      `json:"watchers"`
	PrimaryLang    *string  `json:"primary_lang"`
	HasIssues      bool     `json:"has_issues"`
	HasProjects    bool     `json:"has_projects"`
	HasWiki        bool     `json:"has_wiki"`
	HasPages       bool     `json:"has_pages"`
	HasDownloads   bool     `json:"has_downloads"`
	HasDiscussions bool     `json:"has_discussions"`
	License        any      `json:"license"`
	Topics         []string `json:"topics"`
}

// Repository is one entry from a user's repository listing, before it is
// classified as original or authored fork.
type Repository struct {
	Name   string
	Fork   bool
	Fields RepoFields
}

// ProfileSummary is the normalized output of the aggregation pipeline.
// Identity fields are nullable; absence is a valid state, not an error.
// OriginalRepos and AuthoredForks key sets are disjoint by construction.
type ProfileSummary struct {
	Avatar          *string               `json:"avatar"`
	Username        *string               `json:"username"`
	Name            *string               `json:"name"`
	Company         *string               `json:"company"`
	Location        *string               `json:"location"`
	Blog            *string               `json:"blog"`
	Bio             *string               `json:"bio"`
	Email           *string               `json:"email"`
	Twitter         *string               `json:"twitter"`
	Followers       int                   `json:"followers"`
	Following       int                   `json:"following"`
	PublicRepoCount int                   `json:"public_repo_count"`
	OriginalRepos   map[string]RepoFields `json:"original_repos"`
	AuthoredForks   map[string]RepoFields `json:"authored_forks"`
	Badges          map[string]string     `json:"badges"`
}

// RateLimitSnapshot aggregates quota numbers across every configured GitHub
// credential. Purely derived, never persisted.
type RateLimitSnapshot struct {
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// ContributionDay is one cell of the contribution calendar.
type ContributionDay struct {
	Date  string
	Count int
}

// ContributionWeek is one column of the calendar, up to seven days.
type ContributionWeek struct {
	Days []ContributionDay
}

// ContributionCalendar is a full year of daily contribution counts as
// returned by the GraphQL contributions query.
type ContributionCalendar struct {
	Weeks []ContributionWeek
}
