package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribconnect/contribconnect/internal/graph"
)

const testRepo = "acme/widgets"

func newTestStore(t *testing.T) *graph.Store {
	t.Helper()
	store, err := graph.Open(graph.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addContributor(t *testing.T, store *graph.Store, login string, contributions int) {
	t.Helper()
	ctx := context.Background()
	id := graph.UserID(login)
	res := store.UpsertNode(ctx, id, graph.NodeUser, map[string]any{
		"login": login,
		"url":   "https://github.com/" + login,
	})
	require.True(t, res.OK)
	res = store.UpsertEdge(ctx, id, graph.RepoID("acme", "widgets"), graph.EdgeContributesTo,
		map[string]any{"contributions": contributions})
	require.True(t, res.OK)
}

// addIssue writes an issue node with labels, its HAS_LABEL edges, and an
// AUTHORED edge from the author.
func addIssue(t *testing.T, store *graph.Store, number int, author string, labels []string) string {
	t.Helper()
	ctx := context.Background()
	issueID := graph.IssueID("acme", "widgets", number)
	labelsAny := make([]any, len(labels))
	for i, l := range labels {
		labelsAny[i] = l
	}
	res := store.UpsertNode(ctx, issueID, graph.NodeIssue, map[string]any{
		"number": number,
		"title":  fmt.Sprintf("Issue %d", number),
		"state":  "open",
		"labels": labelsAny,
	})
	require.True(t, res.OK)
	for _, label := range labels {
		labelID := graph.LabelID("acme", "widgets", label)
		store.UpsertNode(ctx, labelID, graph.NodeLabel, map[string]any{"name": label})
		res = store.UpsertEdge(ctx, issueID, labelID, graph.EdgeHasLabel, nil)
		require.True(t, res.OK)
	}
	if author != "" {
		userID := graph.UserID(author)
		store.UpsertNode(ctx, userID, graph.NodeUser, map[string]any{"login": author})
		res = store.UpsertEdge(ctx, userID, issueID, graph.EdgeAuthored, nil)
		require.True(t, res.OK)
	}
	return issueID
}

func TestTopContributors_OrderedDescending(t *testing.T) {
	store := newTestStore(t)
	addContributor(t, store, "ana", 5)
	addContributor(t, store, "ben", 20)
	addContributor(t, store, "cam", 20)
	addContributor(t, store, "dee", 1)

	result, err := TopContributors(context.Background(), store, testRepo, 10)
	require.NoError(t, err)
	assert.True(t, result.DataAvailable)
	assert.Equal(t, 4, result.Total)

	counts := make([]int, len(result.Contributors))
	for i, c := range result.Contributors {
		counts[i] = c.Contributions
	}
	assert.Equal(t, []int{20, 20, 5, 1}, counts)
}

func TestTopContributors_LimitApplied(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 15; i++ {
		addContributor(t, store, fmt.Sprintf("user%02d", i), i+1)
	}

	result, err := TopContributors(context.Background(), store, testRepo, 10)
	require.NoError(t, err)
	assert.Len(t, result.Contributors, 10)
	assert.Equal(t, 15, result.Total)
	assert.Equal(t, 15, result.Contributors[0].Contributions)
}

func TestTopContributors_NoData(t *testing.T) {
	store := newTestStore(t)

	result, err := TopContributors(context.Background(), store, testRepo, 10)
	require.NoError(t, err)
	assert.False(t, result.DataAvailable)
	assert.Empty(t, result.Contributors)
}

func TestTopContributors_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := TopContributors(context.Background(), store, "", 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFindReviewers_LabelExpertise(t *testing.T) {
	store := newTestStore(t)
	// ana: 2 bug issues, ben: 1 bug issue
	addIssue(t, store, 1, "ana", []string{"bug"})
	addIssue(t, store, 2, "ana", []string{"bug"})
	addIssue(t, store, 3, "ben", []string{"bug"})

	result, err := FindReviewers(context.Background(), store, []string{"bug"}, testRepo)
	require.NoError(t, err)
	assert.Equal(t, "Based on label expertise", result.Note)

	require.NotEmpty(t, result.SuggestedReviewers)
	assert.Equal(t, "ana", result.SuggestedReviewers[0].Login)
	assert.Equal(t, 2, result.SuggestedReviewers[0].IssueCount)

	experts := result.LabelExperts["bug"]
	require.Len(t, experts, 2)
	assert.Equal(t, "ana", experts[0].Login)
	assert.Equal(t, "ben", experts[1].Login)
}

func TestFindReviewers_CumulativeAcrossLabels(t *testing.T) {
	store := newTestStore(t)
	// ben has one issue per label, ana two issues on one label
	addIssue(t, store, 1, "ana", []string{"bug"})
	addIssue(t, store, 2, "ana", []string{"bug"})
	addIssue(t, store, 3, "ben", []string{"bug"})
	addIssue(t, store, 4, "ben", []string{"docs"})
	addIssue(t, store, 5, "ben", []string{"docs"})
	addIssue(t, store, 6, "ben", []string{"docs"})

	result, err := FindReviewers(context.Background(), store, []string{"bug", "docs"}, testRepo)
	require.NoError(t, err)
	require.NotEmpty(t, result.SuggestedReviewers)
	// ben: 1 (bug) + 3 (docs) = 4, ana: 2 (bug)
	assert.Equal(t, "ben", result.SuggestedReviewers[0].Login)
	assert.Equal(t, 4, result.SuggestedReviewers[0].IssueCount)
	assert.Equal(t, "ana", result.SuggestedReviewers[1].Login)
}

func TestFindReviewers_FallbackToTopContributors(t *testing.T) {
	store := newTestStore(t)
	addContributor(t, store, "ana", 50)
	addContributor(t, store, "ben", 10)

	result, err := FindReviewers(context.Background(), store, []string{"nonexistent-label"}, testRepo)
	require.NoError(t, err)
	assert.Equal(t, "Based on contribution history", result.Note)
	require.NotEmpty(t, result.SuggestedReviewers)
	assert.Equal(t, "ana", result.SuggestedReviewers[0].Login)
	assert.Equal(t, []string{"general contributor"}, result.SuggestedReviewers[0].Expertise)
}

func TestFindReviewers_EmptyLabelsEmptyGraph(t *testing.T) {
	store := newTestStore(t)

	result, err := FindReviewers(context.Background(), store, nil, testRepo)
	require.NoError(t, err)
	assert.Empty(t, result.SuggestedReviewers)
	assert.Equal(t, "No contributor data available yet", result.Note)
}

func TestFindReviewers_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := FindReviewers(context.Background(), store, []string{"bug"}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRelatedIssues_ScoredByLabelOverlap(t *testing.T) {
	store := newTestStore(t)
	orig := addIssue(t, store, 1, "ana", []string{"bug", "ui", "priority"})
	addIssue(t, store, 2, "ben", []string{"bug", "ui"})       // 2/3 shared
	addIssue(t, store, 3, "cam", []string{"bug"})             // 1/3 shared
	addIssue(t, store, 4, "dee", []string{"docs", "backlog"}) // unrelated

	result, err := RelatedIssues(context.Background(), store, orig, testRepo)
	require.NoError(t, err)
	assert.False(t, result.NotFound)
	require.Len(t, result.RelatedIssues, 2)

	first := result.RelatedIssues[0]
	assert.Equal(t, 2, first.Number)
	assert.InDelta(t, 2.0/3.0, first.SimilarityScore, 1e-9)
	assert.ElementsMatch(t, []string{"bug", "ui"}, first.SharedLabels)

	second := result.RelatedIssues[1]
	assert.Equal(t, 3, second.Number)
	assert.InDelta(t, 1.0/3.0, second.SimilarityScore, 1e-9)
}

func TestRelatedIssues_DedupAcrossSharedLabels(t *testing.T) {
	store := newTestStore(t)
	// Issue 2 shares both labels, so it is reachable through two label scans
	orig := addIssue(t, store, 1, "ana", []string{"bug", "ui"})
	addIssue(t, store, 2, "ben", []string{"bug", "ui"})

	result, err := RelatedIssues(context.Background(), store, orig, testRepo)
	require.NoError(t, err)
	require.Len(t, result.RelatedIssues, 1)
	assert.Equal(t, 2, result.RelatedIssues[0].Number)
	assert.Equal(t, 1, result.TotalFound)
}

func TestRelatedIssues_NoLabels(t *testing.T) {
	store := newTestStore(t)
	orig := addIssue(t, store, 1, "ana", nil)

	// Zero labels must not divide by zero and yields no candidates
	result, err := RelatedIssues(context.Background(), store, orig, testRepo)
	require.NoError(t, err)
	assert.Empty(t, result.RelatedIssues)
	assert.Equal(t, 0, result.TotalFound)
}

func TestRelatedIssues_NotFoundGuidance(t *testing.T) {
	store := newTestStore(t)

	result, err := RelatedIssues(context.Background(), store,
		graph.IssueID("acme", "widgets", 999), testRepo)
	require.NoError(t, err)
	assert.True(t, result.NotFound)
	assert.NotEmpty(t, result.Guidance)
	assert.NotEmpty(t, result.HelpfulTips)
	assert.Empty(t, result.RelatedIssues)
}

func TestRelatedIssues_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := RelatedIssues(context.Background(), store, "", testRepo)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = RelatedIssues(context.Background(), store, "issue#acme/widgets#1", "")
	assert.ErrorIs(t, err, ErrValidation)
}
