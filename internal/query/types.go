// Package query implements the read-side graph algorithms: top-contributor
// ranking, label-based reviewer suggestions, and related-issue discovery.
// Every function is a pure read over current graph contents; nothing here
// writes.
package query

import (
	"context"
	"errors"

	"github.com/contribconnect/contribconnect/internal/graph"
)

// ErrValidation marks a malformed required parameter. Validation failures
// surface before any storage access.
var ErrValidation = errors.New("invalid parameters")

// Store is the read surface the algorithms need from the graph store.
type Store interface {
	GetNode(ctx context.Context, id string) (*graph.Node, error)
	OutgoingEdges(ctx context.Context, fromID string, edgeType graph.EdgeType) ([]graph.Edge, error)
	IncomingEdges(ctx context.Context, toID string, edgeType graph.EdgeType) ([]graph.Edge, error)
}

// Contributor is one ranked contributor entry.
type Contributor struct {
	UserID        string `json:"userId"`
	Login         string `json:"login"`
	URL           string `json:"url"`
	AvatarURL     string `json:"avatarUrl"`
	Contributions int    `json:"contributions"`
}

// TopContributorsResult ranks contributors for one repository.
// DataAvailable distinguishes "repository not yet ingested" (false) from
// "ingested with genuinely zero contributors" (true, empty list).
type TopContributorsResult struct {
	Repository    string        `json:"repo"`
	Contributors  []Contributor `json:"contributors"`
	Total         int           `json:"total"`
	DataAvailable bool          `json:"dataAvailable"`
}

// Reviewer is one suggested reviewer with the reasoning behind the
// suggestion.
type Reviewer struct {
	Login         string   `json:"login"`
	URL           string   `json:"url"`
	Contributions int      `json:"contributions,omitempty"`
	IssueCount    int      `json:"issueCount,omitempty"`
	Expertise     []string `json:"expertise"`
	Reason        string   `json:"reason"`
}

// LabelExpert is one user's expertise signal for a single label.
type LabelExpert struct {
	Login      string `json:"login"`
	URL        string `json:"url"`
	IssueCount int    `json:"issueCount"`
	Expertise  string `json:"expertise"`
}

// ReviewersResult combines the ranked suggestion list with the per-label
// breakdown it was derived from.
type ReviewersResult struct {
	Labels             []string                 `json:"labels"`
	Repository         string                   `json:"repo"`
	SuggestedReviewers []Reviewer               `json:"suggestedReviewers"`
	LabelExperts       map[string][]LabelExpert `json:"perLabelExperts"`
	Note               string                   `json:"note"`
}

// IssueSummary identifies the issue a related-issue query started from.
type IssueSummary struct {
	IssueID string   `json:"issueId"`
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Labels  []string `json:"labels"`
}

// RelatedIssue is one similarity-scored sibling issue.
type RelatedIssue struct {
	IssueID         string   `json:"issueId"`
	Number          int      `json:"number"`
	Title           string   `json:"title"`
	State           string   `json:"state"`
	URL             string   `json:"url"`
	Labels          []string `json:"labels"`
	SharedLabels    []string `json:"sharedLabels"`
	SimilarityScore float64  `json:"similarityScore"`
}

// RelatedIssuesResult either carries scored siblings of the original issue
// or, when the issue is absent from the graph, a structured not-found
// outcome with actionable guidance. The not-found case is a UX contract,
// not an error.
type RelatedIssuesResult struct {
	NotFound      bool           `json:"notFound,omitempty"`
	Guidance      string         `json:"guidance,omitempty"`
	HelpfulTips   []string       `json:"helpfulTips,omitempty"`
	OriginalIssue *IssueSummary  `json:"originalIssue,omitempty"`
	RelatedIssues []RelatedIssue `json:"relatedIssues"`
	Repository    string         `json:"repo"`
	TotalFound    int            `json:"totalFound"`
}
