// Package ingest implements the checkpointed GitHub activity crawler that
// populates the contribution graph.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gh "github.com/google/go-github/v81/github"

	"github.com/contribconnect/contribconnect/internal/archive"
	ghclient "github.com/contribconnect/contribconnect/internal/github"
	"github.com/contribconnect/contribconnect/internal/graph"
	"github.com/contribconnect/contribconnect/internal/repos"
)

// Mode selects what one ingestion run fetches.
type Mode string

const (
	// ModeContributors fetches the repository contributor list only.
	ModeContributors Mode = "contributors"
	// ModePRs runs the comprehensive pull-request scrape: every PR with its
	// comments, reviews, and changed files, resumable via checkpoint.
	ModePRs Mode = "prs"
	// ModeFull combines contributors, comprehensive PRs, and issues.
	ModeFull Mode = "full"
	// ModeBasic is the legacy bounded scrape: a handful of PRs and issues
	// without comments or reviews, for small or quick runs.
	ModeBasic Mode = "basic"
)

// Validate rejects unknown modes before any network or storage call.
func (m Mode) Validate() error {
	switch m {
	case ModeContributors, ModePRs, ModeFull, ModeBasic:
		return nil
	}
	return fmt.Errorf("invalid mode %q: must be contributors, prs, full, or basic", m)
}

// Crawl limits and cadence.
const (
	maxContributors    = 1000
	contributorTimeout = 5 * time.Minute
	checkpointEvery    = 10
	pageDelay          = 500 * time.Millisecond

	prBodyLimit      = 1000
	commentBodyLimit = 500
	basicBodyLimit   = 500

	basicPRLimit    = 30
	basicFileLimit  = 10
	basicIssueLimit = 30
)

// Crawler ingests repository activity into the graph store. Repositories in
// a batch are processed sequentially; within one repository's comprehensive
// PR crawl, PRs are processed in strictly descending number order, which the
// checkpoint's resume invariant depends on.
type Crawler struct {
	api      API
	store    *graph.Store
	registry *repos.Registry
	sink     archive.Sink
	sleep    ghclient.Sleeper
	now      func() time.Time
	logger   *slog.Logger

	// BatchSize caps repositories per run.
	BatchSize int
}

// NewCrawler wires a crawler. A nil sink disables raw archiving.
func NewCrawler(api API, store *graph.Store, registry *repos.Registry, sink archive.Sink, logger *slog.Logger) *Crawler {
	if sink == nil {
		sink = archive.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		api:       api,
		store:     store,
		registry:  registry,
		sink:      sink,
		sleep:     ghclient.SleepContext,
		now:       time.Now,
		logger:    logger,
		BatchSize: repos.DefaultBatchSize,
	}
}

// Run processes the enabled repository batch in the given mode. A
// repository-level failure is recorded in that repository's result and does
// not abort the rest of the batch.
func (c *Crawler) Run(ctx context.Context, mode Mode) (*BatchResult, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	configs, err := c.registry.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("select repositories: %w", err)
	}
	if len(configs) > c.BatchSize {
		configs = configs[:c.BatchSize]
	}

	batch := &BatchResult{}
	for _, cfg := range configs {
		batch.Results = append(batch.Results, c.runOne(ctx, cfg.Org, cfg.Repo, mode))
	}
	c.summarize(batch)
	return batch, nil
}

// RunRepository processes a single repository, bypassing batch selection.
func (c *Crawler) RunRepository(ctx context.Context, org, repo string, mode Mode) (*BatchResult, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	batch := &BatchResult{Results: []RepoResult{c.runOne(ctx, org, repo, mode)}}
	c.summarize(batch)
	return batch, nil
}

func (c *Crawler) summarize(batch *BatchResult) {
	batch.TotalProcessed = len(batch.Results)
	for _, r := range batch.Results {
		if r.Status == repos.StatusSuccess {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}
}

func (c *Crawler) runOne(ctx context.Context, org, repo string, mode Mode) RepoResult {
	full := org + "/" + repo
	stats, err := c.ingestRepository(ctx, org, repo, mode)
	if err != nil {
		c.logger.Error("repository ingestion failed", "repo", full, "error", err)
		if rerr := c.registry.RecordIngest(ctx, org, repo, repos.StatusError, err.Error()); rerr != nil {
			c.logger.Error("record ingest status failed", "repo", full, "error", rerr)
		}
		return RepoResult{Repository: full, Status: repos.StatusError, Stats: stats, Error: err.Error()}
	}
	if rerr := c.registry.RecordIngest(ctx, org, repo, repos.StatusSuccess, ""); rerr != nil {
		c.logger.Error("record ingest status failed", "repo", full, "error", rerr)
	}
	return RepoResult{Repository: full, Status: repos.StatusSuccess, Stats: stats}
}

// ingestRepository runs the mode's phases for one repository. The returned
// error is repository-level (the repository itself could not be fetched);
// per-item failures land in stats.Errors instead.
func (c *Crawler) ingestRepository(ctx context.Context, org, repo string, mode Mode) (*Stats, error) {
	stats := &Stats{Errors: []string{}}
	repoID := graph.RepoID(org, repo)
	c.logger.Info("ingesting repository", "repo", org+"/"+repo, "mode", mode)

	repository, err := c.api.GetRepository(ctx, org, repo)
	stats.APICalls++
	if err != nil {
		return stats, fmt.Errorf("fetch repository %s/%s: %w", org, repo, err)
	}
	if repository == nil {
		return stats, fmt.Errorf("repository %s/%s does not exist", org, repo)
	}

	c.recordWrite(stats, c.store.UpsertNode(ctx, repoID, graph.NodeRepo, map[string]any{
		"name":        repository.GetName(),
		"owner":       repository.GetOwner().GetLogin(),
		"url":         repository.GetHTMLURL(),
		"description": repository.GetDescription(),
		"stars":       repository.GetStargazersCount(),
		"topics":      repository.Topics,
		"language":    repository.GetLanguage(),
	}))
	c.archiveRaw(ctx, org, repo, "repo", "repo.json", repository)

	if mode == ModeContributors || mode == ModeFull {
		c.ingestContributors(ctx, org, repo, repoID, stats)
	}

	switch mode {
	case ModePRs, ModeFull:
		c.scrapePullRequests(ctx, org, repo, repoID, stats)
	case ModeBasic:
		c.ingestBasicPRs(ctx, org, repo, repoID, stats)
	}

	if mode == ModeFull || mode == ModeBasic {
		c.ingestIssues(ctx, org, repo, repoID, stats)
	}

	c.logger.Info("ingestion complete",
		"repo", org+"/"+repo,
		"contributors", stats.Contributors,
		"prs", stats.PRsProcessed,
		"issues", stats.Issues,
		"files", stats.Files,
		"errors", len(stats.Errors),
	)
	return stats, nil
}

// ingestContributors pages through the full contributor list, bounded by
// both an absolute count ceiling and a wall-clock timeout. Hitting either
// cap halts the phase gracefully with partial results kept and the reason
// recorded.
func (c *Crawler) ingestContributors(ctx context.Context, org, repo, repoID string, stats *Stats) {
	if err := c.api.WaitForQuota(ctx, 100); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("quota wait: %v", err))
		return
	}

	var all []*gh.Contributor
	page := 1
	for {
		contributors, nextPage, err := c.api.ListContributors(ctx, org, repo, page)
		stats.APICalls++
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("list contributors page %d: %v", page, err))
			break
		}
		if len(contributors) == 0 {
			break
		}
		all = append(all, contributors...)
		if nextPage == 0 {
			break
		}
		page = nextPage
		if err := c.sleep(ctx, pageDelay); err != nil {
			return
		}
	}
	stats.ContributorsTotal = len(all)
	c.logger.Info("fetched contributors", "repo", org+"/"+repo, "total", len(all))

	start := c.now()
	for _, contributor := range all {
		if c.now().Sub(start) > contributorTimeout {
			stats.Errors = append(stats.Errors, fmt.Sprintf("timeout after %d contributors", stats.Contributors))
			break
		}
		if stats.Contributors >= maxContributors {
			stats.Errors = append(stats.Errors, "max contributor limit reached")
			break
		}

		login := contributor.GetLogin()
		if login == "" {
			continue
		}
		if contributor.GetType() != "User" {
			stats.BotsSkipped++
			continue
		}

		userID := graph.UserID(login)
		contributions := contributor.GetContributions()
		c.recordWrite(stats, c.store.UpsertNode(ctx, userID, graph.NodeUser, map[string]any{
			"login":         login,
			"url":           contributor.GetHTMLURL(),
			"avatarUrl":     contributor.GetAvatarURL(),
			"contributions": contributions,
			"type":          "contributor",
		}))
		c.recordWrite(stats, c.store.UpsertEdge(ctx, userID, repoID, graph.EdgeContributesTo, map[string]any{
			"contributions": contributions,
		}))
		stats.Contributors++
	}
	c.logger.Info("contributors ingested",
		"repo", org+"/"+repo,
		"processed", stats.Contributors,
		"botsSkipped", stats.BotsSkipped,
	)
}

// scrapePullRequests is the comprehensive PR phase: every pull request with
// comments, reviews, and changed files, newest first, resumable from the
// per-repository checkpoint. The checkpoint K means PRs numbered >= K were
// fully processed earlier; this run skips those and persists a new
// checkpoint every ten processed PRs and at run end. A crash therefore
// reprocesses at most nine PRs on resume; idempotent upserts make that safe,
// whereas skipping unprocessed PRs would not be.
func (c *Crawler) scrapePullRequests(ctx context.Context, org, repo, repoID string, stats *Stats) {
	checkpoint, err := c.registry.Checkpoint(ctx, org, repo)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("load checkpoint: %v", err))
		checkpoint = 0
	}
	if checkpoint > 0 {
		c.logger.Info("resuming from checkpoint", "repo", org+"/"+repo, "lastProcessedPR", checkpoint)
	} else {
		c.logger.Info("no checkpoint, starting from newest PR", "repo", org+"/"+repo)
	}

	if err := c.api.WaitForQuota(ctx, 500); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("quota wait: %v", err))
		return
	}

	var all []*gh.PullRequest
	page := 1
	for {
		prs, nextPage, err := c.api.ListPullRequests(ctx, org, repo, page)
		stats.APICalls++
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("list pull requests page %d: %v", page, err))
			break
		}
		if len(prs) == 0 {
			break
		}
		all = append(all, prs...)
		c.logger.Info("fetched PR page", "page", page, "count", len(prs), "total", len(all))
		if nextPage == 0 {
			break
		}
		page = nextPage
		if err := c.sleep(ctx, pageDelay); err != nil {
			return
		}
	}
	stats.PRsTotal = len(all)

	for _, pr := range all {
		number := pr.GetNumber()
		if number == 0 {
			continue
		}
		if checkpoint > 0 && number >= checkpoint {
			stats.PRsSkipped++
			continue
		}
		if ctx.Err() != nil {
			return
		}

		if err := c.processPullRequest(ctx, org, repo, repoID, pr, stats); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("PR #%d: %v", number, err))
			continue
		}
		stats.PRsProcessed++
		stats.LastPRProcessed = number

		if stats.PRsProcessed%checkpointEvery == 0 {
			c.saveCheckpoint(ctx, org, repo, number, stats)
			if err := c.api.WaitForQuota(ctx, 100); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("quota wait: %v", err))
				return
			}
		}
	}

	if stats.PRsProcessed > 0 {
		c.saveCheckpoint(ctx, org, repo, stats.LastPRProcessed, stats)
	}
	c.logger.Info("PR scrape complete",
		"repo", org+"/"+repo,
		"processed", stats.PRsProcessed,
		"skipped", stats.PRsSkipped,
		"comments", stats.Comments,
		"reviews", stats.Reviews,
		"files", stats.Files,
	)
}

func (c *Crawler) saveCheckpoint(ctx context.Context, org, repo string, prNumber int, stats *Stats) {
	if err := c.registry.SetCheckpoint(ctx, org, repo, prNumber, c.now()); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("save checkpoint at PR #%d: %v", prNumber, err))
		return
	}
	c.logger.Info("checkpoint saved", "repo", org+"/"+repo, "pr", prNumber)
}

// processPullRequest writes one PR and its comments, reviews, and files. The
// returned error covers API fetch failures only; storage write failures are
// counted and carried in stats.
func (c *Crawler) processPullRequest(ctx context.Context, org, repo, repoID string, pr *gh.PullRequest, stats *Stats) error {
	number := pr.GetNumber()
	login := pr.GetUser().GetLogin()
	if login == "" {
		c.logger.Warn("skipping PR without user", "repo", org+"/"+repo, "pr", number)
		return nil
	}

	prID := graph.PRID(org, repo, number)
	userID := graph.UserID(login)

	c.recordWrite(stats, c.store.UpsertNode(ctx, prID, graph.NodePullRequest, map[string]any{
		"number":        number,
		"title":         pr.GetTitle(),
		"body":          truncate(pr.GetBody(), prBodyLimit),
		"state":         pr.GetState(),
		"merged":        pr.GetMerged(),
		"draft":         pr.GetDraft(),
		"created_at":    formatTime(pr.GetCreatedAt()),
		"updated_at":    formatTime(pr.GetUpdatedAt()),
		"closed_at":     formatTime(pr.GetClosedAt()),
		"merged_at":     formatTime(pr.GetMergedAt()),
		"url":           pr.GetHTMLURL(),
		"additions":     pr.GetAdditions(),
		"deletions":     pr.GetDeletions(),
		"changed_files": pr.GetChangedFiles(),
		"commits":       pr.GetCommits(),
		"base_branch":   pr.GetBase().GetRef(),
		"head_branch":   pr.GetHead().GetRef(),
	}))
	c.upsertUser(ctx, userID, pr.GetUser(), stats)
	c.recordWrite(stats, c.store.UpsertEdge(ctx, userID, prID, graph.EdgeAuthored, map[string]any{
		"createdAt": formatTime(pr.GetCreatedAt()),
	}))
	c.recordWrite(stats, c.store.UpsertEdge(ctx, prID, repoID, graph.EdgeInRepo, nil))

	comments, err := c.api.ListPRComments(ctx, org, repo, number)
	stats.APICalls++
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	for _, comment := range comments {
		author := comment.GetUser().GetLogin()
		if author == "" {
			continue
		}
		commentID := graph.CommentID(org, repo, number, comment.GetID())
		c.recordWrite(stats, c.store.UpsertNode(ctx, commentID, graph.NodePRComment, map[string]any{
			"pr_number":  number,
			"author":     author,
			"body":       truncate(comment.GetBody(), commentBodyLimit),
			"created_at": formatTime(comment.GetCreatedAt()),
			"url":        comment.GetHTMLURL(),
		}))
		c.recordWrite(stats, c.store.UpsertEdge(ctx, graph.UserID(author), commentID, graph.EdgeCommented, nil))
		c.recordWrite(stats, c.store.UpsertEdge(ctx, commentID, prID, graph.EdgeOnPR, nil))
		stats.Comments++
	}

	reviews, err := c.api.ListPRReviews(ctx, org, repo, number)
	stats.APICalls++
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	for _, review := range reviews {
		reviewer := review.GetUser().GetLogin()
		if reviewer == "" {
			continue
		}
		reviewID := graph.ReviewID(org, repo, number, review.GetID())
		c.recordWrite(stats, c.store.UpsertNode(ctx, reviewID, graph.NodePRReview, map[string]any{
			"pr_number":    number,
			"reviewer":     reviewer,
			"state":        review.GetState(),
			"body":         truncate(review.GetBody(), commentBodyLimit),
			"submitted_at": formatTime(review.GetSubmittedAt()),
		}))
		c.recordWrite(stats, c.store.UpsertEdge(ctx, graph.UserID(reviewer), reviewID, graph.EdgeReviewed, nil))
		c.recordWrite(stats, c.store.UpsertEdge(ctx, reviewID, prID, graph.EdgeReviewsPR, nil))
		stats.Reviews++
	}

	files, err := c.api.ListPRFiles(ctx, org, repo, number)
	stats.APICalls++
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	for _, file := range files {
		c.upsertFile(ctx, org, repo, prID, file, stats)
	}

	return nil
}

// ingestBasicPRs is the legacy bounded scrape: one page of PRs, the first 30
// processed, files capped at 10 per PR, no comments or reviews.
func (c *Crawler) ingestBasicPRs(ctx context.Context, org, repo, repoID string, stats *Stats) {
	prs, _, err := c.api.ListPullRequests(ctx, org, repo, 1)
	stats.APICalls++
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("list pull requests: %v", err))
		return
	}
	if len(prs) > basicPRLimit {
		prs = prs[:basicPRLimit]
	}

	for _, pr := range prs {
		number := pr.GetNumber()
		login := pr.GetUser().GetLogin()
		if number == 0 || login == "" {
			continue
		}
		prID := graph.PRID(org, repo, number)
		userID := graph.UserID(login)

		c.recordWrite(stats, c.store.UpsertNode(ctx, prID, graph.NodePullRequest, map[string]any{
			"number":    number,
			"title":     pr.GetTitle(),
			"body":      truncate(pr.GetBody(), basicBodyLimit),
			"state":     pr.GetState(),
			"merged":    pr.GetMerged(),
			"createdAt": formatTime(pr.GetCreatedAt()),
			"url":       pr.GetHTMLURL(),
			"additions": pr.GetAdditions(),
			"deletions": pr.GetDeletions(),
		}))
		c.upsertUser(ctx, userID, pr.GetUser(), stats)
		c.recordWrite(stats, c.store.UpsertEdge(ctx, userID, prID, graph.EdgeAuthored, map[string]any{
			"createdAt": formatTime(pr.GetCreatedAt()),
		}))
		c.recordWrite(stats, c.store.UpsertEdge(ctx, prID, repoID, graph.EdgeInRepo, nil))

		files, err := c.api.ListPRFiles(ctx, org, repo, number)
		stats.APICalls++
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("PR #%d files: %v", number, err))
			continue
		}
		if len(files) > basicFileLimit {
			files = files[:basicFileLimit]
		}
		for _, file := range files {
			c.upsertFile(ctx, org, repo, prID, file, stats)
		}
		stats.PRsProcessed++
		c.archiveRaw(ctx, org, repo, "prs", fmt.Sprintf("pr-%d.json", number), pr)

		if err := c.sleep(ctx, pageDelay); err != nil {
			return
		}
	}
}

// ingestIssues fetches one page of issues, skipping pull requests (the
// issues endpoint returns both), writing issue, label, and authorship
// records.
func (c *Crawler) ingestIssues(ctx context.Context, org, repo, repoID string, stats *Stats) {
	issues, _, err := c.api.ListIssues(ctx, org, repo, 1)
	stats.APICalls++
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("list issues: %v", err))
		return
	}
	if len(issues) > basicIssueLimit {
		issues = issues[:basicIssueLimit]
	}

	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		number := issue.GetNumber()
		login := issue.GetUser().GetLogin()
		if number == 0 || login == "" {
			continue
		}

		issueID := graph.IssueID(org, repo, number)
		userID := graph.UserID(login)

		labels := make([]string, 0, len(issue.Labels))
		for _, label := range issue.Labels {
			labels = append(labels, label.GetName())
		}

		c.recordWrite(stats, c.store.UpsertNode(ctx, issueID, graph.NodeIssue, map[string]any{
			"number":    number,
			"title":     issue.GetTitle(),
			"body":      truncate(issue.GetBody(), basicBodyLimit),
			"state":     issue.GetState(),
			"labels":    labels,
			"createdAt": formatTime(issue.GetCreatedAt()),
			"url":       issue.GetHTMLURL(),
			"comments":  issue.GetComments(),
		}))
		c.upsertUser(ctx, userID, issue.GetUser(), stats)
		c.recordWrite(stats, c.store.UpsertEdge(ctx, userID, issueID, graph.EdgeAuthored, map[string]any{
			"createdAt": formatTime(issue.GetCreatedAt()),
		}))
		c.recordWrite(stats, c.store.UpsertEdge(ctx, issueID, repoID, graph.EdgeInRepo, nil))

		for _, label := range issue.Labels {
			labelID := graph.LabelID(org, repo, label.GetName())
			c.recordWrite(stats, c.store.UpsertNode(ctx, labelID, graph.NodeLabel, map[string]any{
				"name":  label.GetName(),
				"color": label.GetColor(),
			}))
			c.recordWrite(stats, c.store.UpsertEdge(ctx, issueID, labelID, graph.EdgeHasLabel, nil))
		}

		stats.Issues++
		c.archiveRaw(ctx, org, repo, "issues", fmt.Sprintf("issue-%d.json", number), issue)
	}
}

func (c *Crawler) upsertUser(ctx context.Context, userID string, user *gh.User, stats *Stats) {
	c.recordWrite(stats, c.store.UpsertNode(ctx, userID, graph.NodeUser, map[string]any{
		"login":     user.GetLogin(),
		"url":       user.GetHTMLURL(),
		"avatarUrl": user.GetAvatarURL(),
		"type":      "contributor",
	}))
}

func (c *Crawler) upsertFile(ctx context.Context, org, repo, prID string, file *gh.CommitFile, stats *Stats) {
	filename := file.GetFilename()
	if filename == "" {
		return
	}
	fileID := graph.FileID(org, repo, filename)
	c.recordWrite(stats, c.store.UpsertNode(ctx, fileID, graph.NodeFile, map[string]any{
		"path":      filename,
		"directory": parentDir(filename),
	}))
	c.recordWrite(stats, c.store.UpsertEdge(ctx, prID, fileID, graph.EdgeTouches, map[string]any{
		"additions": file.GetAdditions(),
		"deletions": file.GetDeletions(),
		"status":    file.GetStatus(),
	}))
	stats.Files++
}

func (c *Crawler) recordWrite(stats *Stats, res graph.WriteResult) {
	if !res.OK {
		stats.WritesSkipped++
	}
}

func (c *Crawler) archiveRaw(ctx context.Context, org, repo, kind, name string, v any) {
	key := fmt.Sprintf("github/%s/%s/%s/%s/%s", org, repo, kind, archive.DatePath(c.now()), name)
	if err := c.sink.Put(ctx, key, v); err != nil {
		c.logger.Warn("archive write failed", "key", key, "error", err)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func formatTime(ts gh.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}
