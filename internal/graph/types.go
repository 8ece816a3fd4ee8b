// Package graph defines the contribution graph data model and its
// Badger-backed store. The graph is two key-value tables: nodes keyed by a
// composite id ("{type}#{natural-key}") and directed typed edges keyed for
// both forward and reverse adjacency traversal.
package graph

import (
	"fmt"
	"time"
)

// NodeType identifies the kind of entity a node represents.
type NodeType string

const (
	NodeUser        NodeType = "user"
	NodeRepo        NodeType = "repo"
	NodeIssue       NodeType = "issue"
	NodePullRequest NodeType = "pull_request"
	NodeLabel       NodeType = "label"
	NodeFile        NodeType = "file"
	NodePRComment   NodeType = "pr_comment"
	NodePRReview    NodeType = "pr_review"
)

// EdgeType identifies the relationship an edge carries.
type EdgeType string

const (
	EdgeAuthored      EdgeType = "AUTHORED"
	EdgeContributesTo EdgeType = "CONTRIBUTES_TO"
	EdgeInRepo        EdgeType = "IN_REPO"
	EdgeHasLabel      EdgeType = "HAS_LABEL"
	EdgeTouches       EdgeType = "TOUCHES"
	EdgeCommented     EdgeType = "COMMENTED"
	EdgeOnPR          EdgeType = "ON_PR"
	EdgeReviewed      EdgeType = "REVIEWED"
	EdgeReviewsPR     EdgeType = "REVIEWS_PR"
)

// Node is a graph entity record. Upserting the same NodeID overwrites the
// previous record, making repeated ingestion of an entity idempotent.
type Node struct {
	ID        string         `json:"nodeId"`
	Type      NodeType       `json:"nodeType"`
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Edge is a directed, typed relationship between two nodes. An edge is
// uniquely identified by (FromID, ToID, Type); re-upserting the same triple
// overwrites Properties and UpdatedAt rather than duplicating.
type Edge struct {
	FromID     string         `json:"fromId"`
	ToID       string         `json:"toId"`
	Type       EdgeType       `json:"edgeType"`
	Properties map[string]any `json:"properties"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Node id builders. Ids are deterministic from type plus natural key so that
// every ingestion pass writes the same entity to the same record.

// UserID returns the node id for a GitHub user login.
func UserID(login string) string { return "user#" + login }

// RepoID returns the node id for a repository, e.g. "repo#org/name".
func RepoID(org, repo string) string { return fmt.Sprintf("repo#%s/%s", org, repo) }

// IssueID returns the node id for an issue number within a repository.
func IssueID(org, repo string, number int) string {
	return fmt.Sprintf("issue#%s/%s#%d", org, repo, number)
}

// PRID returns the node id for a pull request number within a repository.
func PRID(org, repo string, number int) string {
	return fmt.Sprintf("pr#%s/%s#%d", org, repo, number)
}

// LabelID returns the node id for a label name within a repository.
func LabelID(org, repo, name string) string {
	return fmt.Sprintf("label#%s/%s#%s", org, repo, name)
}

// FileID returns the node id for a file path within a repository.
func FileID(org, repo, path string) string {
	return fmt.Sprintf("file#%s/%s#%s", org, repo, path)
}

// CommentID returns the node id for a PR issue comment.
func CommentID(org, repo string, prNumber int, commentID int64) string {
	return fmt.Sprintf("comment#%s/%s#pr#%d#comment#%d", org, repo, prNumber, commentID)
}

// ReviewID returns the node id for a PR review.
func ReviewID(org, repo string, prNumber int, reviewID int64) string {
	return fmt.Sprintf("review#%s/%s#pr#%d#review#%d", org, repo, prNumber, reviewID)
}

// WriteResult reports the outcome of a best-effort graph write. Ingestion
// aggregates skipped writes instead of aborting on them; a lost write is
// self-healing on the next re-run.
type WriteResult struct {
	OK     bool
	Reason string
}

func writeOK() WriteResult { return WriteResult{OK: true} }

func writeSkipped(err error) WriteResult {
	return WriteResult{OK: false, Reason: err.Error()}
}
