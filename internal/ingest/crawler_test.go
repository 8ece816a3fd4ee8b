package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gh "github.com/google/go-github/v81/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribconnect/contribconnect/internal/graph"
	"github.com/contribconnect/contribconnect/internal/repos"
)

// fakeAPI serves canned GitHub responses.
type fakeAPI struct {
	repo             *gh.Repository
	repoErr          error
	contributorPages [][]*gh.Contributor
	prs              []*gh.PullRequest
	comments         map[int][]*gh.IssueComment
	reviews          map[int][]*gh.PullRequestReview
	files            map[int][]*gh.CommitFile
	issues           []*gh.Issue
}

func (f *fakeAPI) GetRepository(ctx context.Context, org, repo string) (*gh.Repository, error) {
	return f.repo, f.repoErr
}

func (f *fakeAPI) ListContributors(ctx context.Context, org, repo string, page int) ([]*gh.Contributor, int, error) {
	if page < 1 || page > len(f.contributorPages) {
		return nil, 0, nil
	}
	next := 0
	if page < len(f.contributorPages) {
		next = page + 1
	}
	return f.contributorPages[page-1], next, nil
}

func (f *fakeAPI) ListPullRequests(ctx context.Context, org, repo string, page int) ([]*gh.PullRequest, int, error) {
	if page != 1 {
		return nil, 0, nil
	}
	return f.prs, 0, nil
}

func (f *fakeAPI) ListPRComments(ctx context.Context, org, repo string, number int) ([]*gh.IssueComment, error) {
	return f.comments[number], nil
}

func (f *fakeAPI) ListPRReviews(ctx context.Context, org, repo string, number int) ([]*gh.PullRequestReview, error) {
	return f.reviews[number], nil
}

func (f *fakeAPI) ListPRFiles(ctx context.Context, org, repo string, number int) ([]*gh.CommitFile, error) {
	return f.files[number], nil
}

func (f *fakeAPI) ListIssues(ctx context.Context, org, repo string, page int) ([]*gh.Issue, int, error) {
	if page != 1 {
		return nil, 0, nil
	}
	return f.issues, 0, nil
}

func (f *fakeAPI) WaitForQuota(ctx context.Context, minRemaining int) error { return nil }

// steppingClock advances a fixed amount per reading, so timeout paths are
// testable without real sleeps.
type steppingClock struct {
	t    time.Time
	step time.Duration
}

func (c *steppingClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestCrawler(t *testing.T, api API) (*Crawler, *graph.Store, *repos.Registry) {
	t.Helper()
	store, err := graph.Open(graph.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := repos.NewRegistry(store, nil)
	crawler := NewCrawler(api, store, registry, nil, nil)
	crawler.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return crawler, store, registry
}

func testRepo() *gh.Repository {
	return &gh.Repository{
		Name:            gh.Ptr("widgets"),
		Owner:           &gh.User{Login: gh.Ptr("acme")},
		HTMLURL:         gh.Ptr("https://github.com/acme/widgets"),
		Description:     gh.Ptr("widget factory"),
		StargazersCount: gh.Ptr(12),
		Language:        gh.Ptr("Go"),
	}
}

func makeContributor(login, accountType string, contributions int) *gh.Contributor {
	return &gh.Contributor{
		Login:         gh.Ptr(login),
		Type:          gh.Ptr(accountType),
		Contributions: gh.Ptr(contributions),
		HTMLURL:       gh.Ptr("https://github.com/" + login),
	}
}

func makePR(number int, login string) *gh.PullRequest {
	return &gh.PullRequest{
		Number:  gh.Ptr(number),
		Title:   gh.Ptr(fmt.Sprintf("PR %d", number)),
		State:   gh.Ptr("closed"),
		Merged:  gh.Ptr(true),
		User:    &gh.User{Login: gh.Ptr(login)},
		HTMLURL: gh.Ptr(fmt.Sprintf("https://github.com/acme/widgets/pull/%d", number)),
	}
}

// descendingPRs returns PRs numbered from..1, newest first, matching the
// listing order of the live API.
func descendingPRs(from int, login string) []*gh.PullRequest {
	prs := make([]*gh.PullRequest, 0, from)
	for n := from; n >= 1; n-- {
		prs = append(prs, makePR(n, login))
	}
	return prs
}

func TestIngestContributors(t *testing.T) {
	api := &fakeAPI{
		repo: testRepo(),
		contributorPages: [][]*gh.Contributor{{
			makeContributor("ana", "User", 40),
			makeContributor("release-bot", "Bot", 99),
			makeContributor("ben", "User", 7),
		}},
	}
	crawler, store, registry := newTestCrawler(t, api)
	ctx := context.Background()

	batch, err := crawler.RunRepository(ctx, "acme", "widgets", ModeContributors)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, repos.StatusSuccess, batch.Results[0].Status)

	stats := batch.Results[0].Stats
	assert.Equal(t, 2, stats.Contributors)
	assert.Equal(t, 1, stats.BotsSkipped)
	assert.Equal(t, 3, stats.ContributorsTotal)

	edges, err := store.IncomingEdges(ctx, graph.RepoID("acme", "widgets"), graph.EdgeContributesTo)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	node, err := store.GetNode(ctx, graph.UserID("ana"))
	require.NoError(t, err)
	assert.Equal(t, "ana", node.Data["login"])

	cfg, err := registry.Get(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, repos.StatusSuccess, cfg.IngestStatus)
}

func TestIngestContributors_Timeout(t *testing.T) {
	api := &fakeAPI{
		repo: testRepo(),
		contributorPages: [][]*gh.Contributor{{
			makeContributor("ana", "User", 1),
			makeContributor("ben", "User", 2),
		}},
	}
	crawler, _, _ := newTestCrawler(t, api)
	// Each clock reading advances past the phase timeout
	clock := &steppingClock{t: time.Now(), step: contributorTimeout + time.Minute}
	crawler.now = clock.now

	batch, err := crawler.RunRepository(context.Background(), "acme", "widgets", ModeContributors)
	require.NoError(t, err)
	stats := batch.Results[0].Stats
	assert.Equal(t, 0, stats.Contributors)
	require.NotEmpty(t, stats.Errors)
	assert.Contains(t, stats.Errors[0], "timeout")
}

func TestScrapePRs_FreshRun(t *testing.T) {
	api := &fakeAPI{
		repo: testRepo(),
		prs:  descendingPRs(25, "ana"),
		comments: map[int][]*gh.IssueComment{
			25: {{ID: gh.Ptr(int64(900)), User: &gh.User{Login: gh.Ptr("ben")}, Body: gh.Ptr("looks good")}},
		},
		reviews: map[int][]*gh.PullRequestReview{
			25: {{ID: gh.Ptr(int64(700)), User: &gh.User{Login: gh.Ptr("cam")}, State: gh.Ptr("APPROVED")}},
		},
		files: map[int][]*gh.CommitFile{
			25: {{Filename: gh.Ptr("internal/app/server.go"), Additions: gh.Ptr(3)}},
		},
	}
	crawler, store, registry := newTestCrawler(t, api)
	ctx := context.Background()

	batch, err := crawler.RunRepository(ctx, "acme", "widgets", ModePRs)
	require.NoError(t, err)
	stats := batch.Results[0].Stats
	assert.Equal(t, 25, stats.PRsTotal)
	assert.Equal(t, 25, stats.PRsProcessed)
	assert.Equal(t, 0, stats.PRsSkipped)
	assert.Equal(t, 1, stats.Comments)
	assert.Equal(t, 1, stats.Reviews)
	assert.Equal(t, 1, stats.Files)

	// Processing is newest-first, so the final checkpoint is the lowest number
	checkpoint, err := registry.Checkpoint(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 1, checkpoint)

	prID := graph.PRID("acme", "widgets", 25)
	authored, err := store.OutgoingEdges(ctx, graph.UserID("ana"), graph.EdgeAuthored)
	require.NoError(t, err)
	assert.Len(t, authored, 25)

	touches, err := store.OutgoingEdges(ctx, prID, graph.EdgeTouches)
	require.NoError(t, err)
	require.Len(t, touches, 1)
	assert.Equal(t, graph.FileID("acme", "widgets", "internal/app/server.go"), touches[0].ToID)

	onPR, err := store.IncomingEdges(ctx, prID, graph.EdgeOnPR)
	require.NoError(t, err)
	assert.Len(t, onPR, 1)
	reviewsPR, err := store.IncomingEdges(ctx, prID, graph.EdgeReviewsPR)
	require.NoError(t, err)
	assert.Len(t, reviewsPR, 1)
}

func TestScrapePRs_ResumeFromCheckpoint(t *testing.T) {
	api := &fakeAPI{
		repo: testRepo(),
		prs:  descendingPRs(25, "ana"),
	}
	crawler, _, registry := newTestCrawler(t, api)
	ctx := context.Background()

	// An earlier run fully processed PRs 10 and above
	require.NoError(t, registry.SetCheckpoint(ctx, "acme", "widgets", 10, time.Now()))

	batch, err := crawler.RunRepository(ctx, "acme", "widgets", ModePRs)
	require.NoError(t, err)
	stats := batch.Results[0].Stats
	assert.Equal(t, 16, stats.PRsSkipped, "PRs 25..10 are at or above the checkpoint")
	assert.Equal(t, 9, stats.PRsProcessed, "PRs 9..1 remain")
	assert.Equal(t, 1, stats.LastPRProcessed)
}

func TestScrapePRs_PeriodicCheckpoint(t *testing.T) {
	api := &fakeAPI{
		repo: testRepo(),
		prs:  descendingPRs(10, "ana"),
	}
	crawler, _, registry := newTestCrawler(t, api)
	ctx := context.Background()

	_, err := crawler.RunRepository(ctx, "acme", "widgets", ModePRs)
	require.NoError(t, err)

	// The tenth processed PR (number 1) triggered the periodic checkpoint
	checkpoint, err := registry.Checkpoint(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 1, checkpoint)
}

func TestScrapePRs_Idempotent(t *testing.T) {
	api := &fakeAPI{
		repo: testRepo(),
		prs:  descendingPRs(5, "ana"),
	}
	crawler, store, registry := newTestCrawler(t, api)
	ctx := context.Background()

	_, err := crawler.RunRepository(ctx, "acme", "widgets", ModePRs)
	require.NoError(t, err)
	// Second run reprocesses nothing new; rewriting the same records must not
	// duplicate edges
	require.NoError(t, registry.ResetCheckpoint(ctx, "acme", "widgets"))
	_, err = crawler.RunRepository(ctx, "acme", "widgets", ModePRs)
	require.NoError(t, err)

	authored, err := store.OutgoingEdges(ctx, graph.UserID("ana"), graph.EdgeAuthored)
	require.NoError(t, err)
	assert.Len(t, authored, 5)
}

func TestRun_RepoFailureDoesNotAbortBatch(t *testing.T) {
	api := &fakeAPI{repoErr: errors.New("boom")}
	crawler, _, registry := newTestCrawler(t, api)
	ctx := context.Background()

	_, err := registry.Add(ctx, "acme", "widgets", true)
	require.NoError(t, err)
	_, err = registry.Add(ctx, "acme", "gadgets", true)
	require.NoError(t, err)

	batch, err := crawler.Run(ctx, ModeContributors)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.TotalProcessed)
	assert.Equal(t, 2, batch.Failed)
	for _, result := range batch.Results {
		assert.Equal(t, repos.StatusError, result.Status)
		assert.NotEmpty(t, result.Error)
	}

	cfg, err := registry.Get(ctx, "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, repos.StatusError, cfg.IngestStatus)
	assert.Contains(t, cfg.LastError, "boom")
}

func TestRun_BatchSizeCap(t *testing.T) {
	api := &fakeAPI{repo: testRepo()}
	crawler, _, registry := newTestCrawler(t, api)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := registry.Add(ctx, "acme", fmt.Sprintf("repo%d", i), true)
		require.NoError(t, err)
	}

	batch, err := crawler.Run(ctx, ModeContributors)
	require.NoError(t, err)
	assert.Equal(t, repos.DefaultBatchSize, batch.TotalProcessed)
}

func TestIngestBasic_Caps(t *testing.T) {
	files := make([]*gh.CommitFile, 15)
	for i := range files {
		files[i] = &gh.CommitFile{Filename: gh.Ptr(fmt.Sprintf("pkg/file%02d.go", i))}
	}
	api := &fakeAPI{
		repo:  testRepo(),
		prs:   descendingPRs(40, "ana"),
		files: map[int][]*gh.CommitFile{40: files},
	}
	crawler, store, _ := newTestCrawler(t, api)
	ctx := context.Background()

	batch, err := crawler.RunRepository(ctx, "acme", "widgets", ModeBasic)
	require.NoError(t, err)
	stats := batch.Results[0].Stats
	assert.Equal(t, basicPRLimit, stats.PRsProcessed)
	assert.Equal(t, basicFileLimit, stats.Files)

	touches, err := store.OutgoingEdges(ctx, graph.PRID("acme", "widgets", 40), graph.EdgeTouches)
	require.NoError(t, err)
	assert.Len(t, touches, basicFileLimit)
}

func TestIngestIssues_SkipsPullRequests(t *testing.T) {
	api := &fakeAPI{
		repo: testRepo(),
		issues: []*gh.Issue{
			{
				Number: gh.Ptr(5),
				Title:  gh.Ptr("Crash on startup"),
				State:  gh.Ptr("open"),
				User:   &gh.User{Login: gh.Ptr("ana")},
				Labels: []*gh.Label{{Name: gh.Ptr("bug")}, {Name: gh.Ptr("crash")}},
			},
			{
				Number:           gh.Ptr(6),
				Title:            gh.Ptr("Actually a PR"),
				User:             &gh.User{Login: gh.Ptr("ben")},
				PullRequestLinks: &gh.PullRequestLinks{URL: gh.Ptr("https://api.github.com/pr/6")},
			},
		},
	}
	crawler, store, _ := newTestCrawler(t, api)
	ctx := context.Background()

	batch, err := crawler.RunRepository(ctx, "acme", "widgets", ModeBasic)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Results[0].Stats.Issues)

	issueID := graph.IssueID("acme", "widgets", 5)
	node, err := store.GetNode(ctx, issueID)
	require.NoError(t, err)
	assert.Equal(t, "Crash on startup", node.Data["title"])

	hasLabel, err := store.OutgoingEdges(ctx, issueID, graph.EdgeHasLabel)
	require.NoError(t, err)
	assert.Len(t, hasLabel, 2)

	_, err = store.GetNode(ctx, graph.IssueID("acme", "widgets", 6))
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestMode_Validate(t *testing.T) {
	for _, mode := range []Mode{ModeContributors, ModePRs, ModeFull, ModeBasic} {
		assert.NoError(t, mode.Validate())
	}
	assert.Error(t, Mode("everything").Validate())

	_, err := (&Crawler{}).Run(context.Background(), Mode("everything"))
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
}
