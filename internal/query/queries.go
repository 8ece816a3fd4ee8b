package query

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/contribconnect/contribconnect/internal/graph"
)

// Traversal caps matching the graph-tool's read contract.
const (
	defaultContributorLimit = 10
	reviewerLimit           = 5
	expertsPerLabel         = 3
	labelIssueFanout        = 20
	relatedLabelFanout      = 10
	relatedIssueLimit       = 10
)

// TopContributors ranks contributors of a repository by the contribution
// count on their CONTRIBUTES_TO edges. Ordering is a stable descending sort,
// so ties keep their original fetch order.
func TopContributors(ctx context.Context, store Store, repo string, limit int) (*TopContributorsResult, error) {
	if repo == "" {
		return nil, fmt.Errorf("%w: repo required", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultContributorLimit
	}

	edges, err := store.IncomingEdges(ctx, "repo#"+repo, graph.EdgeContributesTo)
	if err != nil {
		return nil, fmt.Errorf("fetch contribution edges: %w", err)
	}
	if len(edges) == 0 {
		// No edges at all means the repository has not been ingested yet,
		// which callers must be able to tell apart from a real empty result.
		return &TopContributorsResult{
			Repository:    repo,
			Contributors:  []Contributor{},
			DataAvailable: false,
		}, nil
	}

	contributors := make([]Contributor, 0, len(edges))
	for _, edge := range edges {
		node, err := store.GetNode(ctx, edge.FromID)
		if err != nil {
			continue
		}
		contributors = append(contributors, Contributor{
			UserID:        edge.FromID,
			Login:         stringProp(node.Data, "login"),
			URL:           stringProp(node.Data, "url"),
			AvatarURL:     stringProp(node.Data, "avatarUrl"),
			Contributions: intProp(edge.Properties, "contributions"),
		})
	}

	sort.SliceStable(contributors, func(i, j int) bool {
		return contributors[i].Contributions > contributors[j].Contributions
	})

	total := len(contributors)
	if len(contributors) > limit {
		contributors = contributors[:limit]
	}
	return &TopContributorsResult{
		Repository:    repo,
		Contributors:  contributors,
		Total:         total,
		DataAvailable: true,
	}, nil
}

// FindReviewers suggests reviewers for the given labels. Per label it walks
// reverse HAS_LABEL edges to issues and reverse AUTHORED edges to their
// authors, tallying expertise; authors are ranked by their cumulative count
// across all requested labels, ties kept in first-seen order. When no
// label-expertise signal exists the suggestion list falls back to overall
// top contributors, so the result is never empty while any contribution
// history exists.
func FindReviewers(ctx context.Context, store Store, labels []string, repo string) (*ReviewersResult, error) {
	if repo == "" {
		return nil, fmt.Errorf("%w: repo required", ErrValidation)
	}
	if labels == nil {
		labels = []string{}
	}

	result := &ReviewersResult{
		Labels:             labels,
		Repository:         repo,
		SuggestedReviewers: []Reviewer{},
		LabelExperts:       map[string][]LabelExpert{},
	}

	cumulative := map[string]int{}
	expertise := map[string][]string{}
	var firstSeen []string

	for _, label := range labels {
		labelID := "label#" + repo + "#" + label
		labelEdges, err := store.IncomingEdges(ctx, labelID, graph.EdgeHasLabel)
		if err != nil {
			return nil, fmt.Errorf("fetch label edges for %q: %w", label, err)
		}
		if len(labelEdges) > labelIssueFanout {
			labelEdges = labelEdges[:labelIssueFanout]
		}

		counts := map[string]int{}
		var order []string
		for _, edge := range labelEdges {
			authorEdges, err := store.IncomingEdges(ctx, edge.FromID, graph.EdgeAuthored)
			if err != nil {
				continue
			}
			for _, authorEdge := range authorEdges {
				if _, seen := counts[authorEdge.FromID]; !seen {
					order = append(order, authorEdge.FromID)
				}
				counts[authorEdge.FromID]++
			}
		}

		sort.SliceStable(order, func(i, j int) bool {
			return counts[order[i]] > counts[order[j]]
		})
		if len(order) > expertsPerLabel {
			order = order[:expertsPerLabel]
		}

		experts := []LabelExpert{}
		for _, userID := range order {
			node, err := store.GetNode(ctx, userID)
			if err != nil || node.Type != graph.NodeUser {
				continue
			}
			experts = append(experts, LabelExpert{
				Login:      stringProp(node.Data, "login"),
				URL:        stringProp(node.Data, "url"),
				IssueCount: counts[userID],
				Expertise:  label,
			})
			if _, seen := cumulative[userID]; !seen {
				firstSeen = append(firstSeen, userID)
			}
			cumulative[userID] += counts[userID]
			expertise[userID] = append(expertise[userID], label)
		}
		result.LabelExperts[label] = experts
	}

	if len(firstSeen) > 0 {
		sort.SliceStable(firstSeen, func(i, j int) bool {
			return cumulative[firstSeen[i]] > cumulative[firstSeen[j]]
		})
		if len(firstSeen) > reviewerLimit {
			firstSeen = firstSeen[:reviewerLimit]
		}
		for _, userID := range firstSeen {
			node, err := store.GetNode(ctx, userID)
			if err != nil {
				continue
			}
			result.SuggestedReviewers = append(result.SuggestedReviewers, Reviewer{
				Login:      stringProp(node.Data, "login"),
				URL:        stringProp(node.Data, "url"),
				IssueCount: cumulative[userID],
				Expertise:  expertise[userID],
				Reason:     fmt.Sprintf("Authored %d issues across requested labels", cumulative[userID]),
			})
		}
		result.Note = "Based on label expertise"
		return result, nil
	}

	// No label signal: fall back to overall top contributors as
	// general-purpose suggestions.
	top, err := TopContributors(ctx, store, repo, reviewerLimit)
	if err != nil {
		return nil, err
	}
	for _, contributor := range top.Contributors {
		result.SuggestedReviewers = append(result.SuggestedReviewers, Reviewer{
			Login:         contributor.Login,
			URL:           contributor.URL,
			Contributions: contributor.Contributions,
			Expertise:     []string{"general contributor"},
			Reason:        fmt.Sprintf("Top contributor with %d contributions", contributor.Contributions),
		})
	}
	if len(result.SuggestedReviewers) > 0 {
		result.Note = "Based on contribution history"
	} else {
		result.Note = "No contributor data available yet"
	}
	return result, nil
}

// RelatedIssues finds issues sharing labels with the given issue, scored by
// |shared labels| / |original issue's label count| with the denominator
// floored at one, sorted by descending score, deduplicated first-occurrence-
// wins, and capped. An issue absent from the graph yields a structured
// not-found result with guidance rather than an error.
func RelatedIssues(ctx context.Context, store Store, issueID, repo string) (*RelatedIssuesResult, error) {
	if issueID == "" || repo == "" {
		return nil, fmt.Errorf("%w: issueId and repo required", ErrValidation)
	}

	node, err := store.GetNode(ctx, issueID)
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			return &RelatedIssuesResult{
				NotFound:   true,
				Guidance:   fmt.Sprintf("Issue %s not found. Try browsing the GitHub issues page for %s to find related issues.", issueID, repo),
				Repository: repo,
				HelpfulTips: []string{
					"Check the repository's GitHub Issues tab",
					"Look for issues with similar labels or topics",
					"Search for keywords related to your problem",
					"Consider asking the maintainers for guidance",
				},
				RelatedIssues: []RelatedIssue{},
			}, nil
		}
		return nil, fmt.Errorf("load issue %s: %w", issueID, err)
	}

	origLabels := stringsProp(node.Data, "labels")
	var candidates []RelatedIssue

	for _, label := range origLabels {
		labelID := "label#" + repo + "#" + label
		labelEdges, err := store.IncomingEdges(ctx, labelID, graph.EdgeHasLabel)
		if err != nil {
			continue
		}
		if len(labelEdges) > relatedLabelFanout {
			labelEdges = labelEdges[:relatedLabelFanout]
		}
		for _, edge := range labelEdges {
			if edge.FromID == issueID {
				continue
			}
			sibling, err := store.GetNode(ctx, edge.FromID)
			if err != nil {
				continue
			}
			siblingLabels := stringsProp(sibling.Data, "labels")
			shared := intersect(origLabels, siblingLabels)
			score := float64(len(shared)) / float64(max(len(origLabels), 1))
			candidates = append(candidates, RelatedIssue{
				IssueID:         edge.FromID,
				Number:          intProp(sibling.Data, "number"),
				Title:           stringProp(sibling.Data, "title"),
				State:           stringProp(sibling.Data, "state"),
				URL:             stringProp(sibling.Data, "url"),
				Labels:          siblingLabels,
				SharedLabels:    shared,
				SimilarityScore: score,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})

	seen := map[string]bool{}
	unique := []RelatedIssue{}
	for _, candidate := range candidates {
		if seen[candidate.IssueID] {
			continue
		}
		seen[candidate.IssueID] = true
		unique = append(unique, candidate)
	}
	total := len(unique)
	if len(unique) > relatedIssueLimit {
		unique = unique[:relatedIssueLimit]
	}

	return &RelatedIssuesResult{
		OriginalIssue: &IssueSummary{
			IssueID: issueID,
			Number:  intProp(node.Data, "number"),
			Title:   stringProp(node.Data, "title"),
			Labels:  origLabels,
		},
		RelatedIssues: unique,
		Repository:    repo,
		TotalFound:    total,
	}, nil
}

// Data maps come back from JSON storage, so numbers are float64 and string
// slices are []any. These helpers default rather than crash on missing or
// mistyped fields.

func stringProp(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func intProp(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func stringsProp(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intersect(a, b []string) []string {
	set := map[string]bool{}
	for _, s := range b {
		set[s] = true
	}
	var shared []string
	for _, s := range a {
		if set[s] {
			shared = append(shared, s)
		}
	}
	return shared
}
