// Package mcp exposes the contribution graph queries as MCP tools.
package mcp

import (
	"time"

	"github.com/contribconnect/contribconnect/internal/query"
)

// TopContributorsInput defines the input for the get_top_contributors tool.
type TopContributorsInput struct {
	// Repo is the repository in "org/name" form.
	Repo string `json:"repo" jsonschema:"required,description=Repository in org/name format"`
	// Limit is the maximum number of contributors to return.
	Limit int `json:"limit,omitempty" jsonschema:"minimum=1,maximum=50,default=10,description=Maximum number of contributors to return"`
}

// TopContributorsOutput contains the ranked contributor list.
type TopContributorsOutput struct {
	Repository    string              `json:"repo"`
	Contributors  []query.Contributor `json:"contributors"`
	Total         int                 `json:"total"`
	DataAvailable bool                `json:"dataAvailable"`
	// Message explains an empty result (e.g. the repository has not been
	// ingested yet).
	Message string `json:"message,omitempty"`
}

// FindReviewersInput defines the input for the find_reviewers tool.
type FindReviewersInput struct {
	// Labels are the issue labels to find expert reviewers for.
	Labels []string `json:"labels" jsonschema:"description=Issue labels to find reviewers for"`
	// Repo is the repository in "org/name" form.
	Repo string `json:"repo" jsonschema:"required,description=Repository in org/name format"`
}

// FindReviewersOutput contains reviewer suggestions and the per-label
// expertise breakdown.
type FindReviewersOutput struct {
	Labels             []string                       `json:"labels"`
	Repository         string                         `json:"repo"`
	SuggestedReviewers []query.Reviewer               `json:"suggestedReviewers"`
	LabelExperts       map[string][]query.LabelExpert `json:"perLabelExperts"`
	Note               string                         `json:"note"`
}

// RelatedIssuesInput defines the input for the find_related_issues tool.
type RelatedIssuesInput struct {
	// IssueID is the graph issue id, e.g. "issue#org/repo#42".
	IssueID string `json:"issueId" jsonschema:"required,description=Graph issue id such as issue#org/repo#42"`
	// Repo is the repository in "org/name" form.
	Repo string `json:"repo" jsonschema:"required,description=Repository in org/name format"`
}

// RelatedIssuesOutput mirrors the query result: related issues or a
// structured not-found outcome with guidance.
type RelatedIssuesOutput struct {
	NotFound      bool                 `json:"notFound,omitempty"`
	Guidance      string               `json:"guidance,omitempty"`
	HelpfulTips   []string             `json:"helpfulTips,omitempty"`
	OriginalIssue *query.IssueSummary  `json:"originalIssue,omitempty"`
	RelatedIssues []query.RelatedIssue `json:"relatedIssues"`
	Repository    string               `json:"repo"`
	TotalFound    int                  `json:"totalFound"`
}

// IngestStatusInput defines the input for the get_ingest_status tool. This
// tool takes no parameters.
type IngestStatusInput struct{}

// RepoStatus is one repository's ingestion state.
type RepoStatus struct {
	Repository      string    `json:"repo"`
	Enabled         bool      `json:"enabled"`
	IngestStatus    string    `json:"ingestStatus"`
	LastIngestAt    time.Time `json:"lastIngestAt,omitzero"`
	LastProcessedPR int       `json:"lastProcessedPr"`
	LastError       string    `json:"lastError,omitempty"`
}

// IngestStatusOutput lists the ingestion state of every configured
// repository.
type IngestStatusOutput struct {
	Repositories []RepoStatus `json:"repositories"`
	Count        int          `json:"count"`
}
