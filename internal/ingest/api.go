package ingest

import (
	"context"
	"errors"
	"log/slog"

	gh "github.com/google/go-github/v81/github"

	ghclient "github.com/contribconnect/contribconnect/internal/github"
)

// perPage is the page size for all bulk listing calls.
const perPage = 100

// API is the slice of the GitHub surface the crawler consumes. Listing calls
// return the next page number (0 when the response was the last page),
// following the API's page-link convention. Implementations apply the retry
// contract internally: a 404 resolves to an empty result, transient failures
// are retried with backoff before surfacing.
type API interface {
	GetRepository(ctx context.Context, org, repo string) (*gh.Repository, error)
	ListContributors(ctx context.Context, org, repo string, page int) ([]*gh.Contributor, int, error)
	ListPullRequests(ctx context.Context, org, repo string, page int) ([]*gh.PullRequest, int, error)
	ListPRComments(ctx context.Context, org, repo string, number int) ([]*gh.IssueComment, error)
	ListPRReviews(ctx context.Context, org, repo string, number int) ([]*gh.PullRequestReview, error)
	ListPRFiles(ctx context.Context, org, repo string, number int) ([]*gh.CommitFile, error)
	ListIssues(ctx context.Context, org, repo string, page int) ([]*gh.Issue, int, error)
	WaitForQuota(ctx context.Context, minRemaining int) error
}

// apiClient implements API over the wrapped go-github client.
type apiClient struct {
	client *ghclient.Client
	policy ghclient.Policy
	sleep  ghclient.Sleeper
	logger *slog.Logger
}

// NewAPI wraps client with the crawler's retry policy.
func NewAPI(client *ghclient.Client, logger *slog.Logger) API {
	if logger == nil {
		logger = slog.Default()
	}
	return &apiClient{
		client: client,
		policy: ghclient.DefaultPolicy(logger),
		sleep:  ghclient.SleepContext,
		logger: logger,
	}
}

func (a *apiClient) GetRepository(ctx context.Context, org, repo string) (*gh.Repository, error) {
	var result *gh.Repository
	err := a.policy.Do(ctx, func() error {
		r, _, err := a.client.Repositories.Get(ctx, org, repo)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (a *apiClient) ListContributors(ctx context.Context, org, repo string, page int) ([]*gh.Contributor, int, error) {
	var contributors []*gh.Contributor
	nextPage := 0
	err := a.policy.Do(ctx, func() error {
		cs, resp, err := a.client.Repositories.ListContributors(ctx, org, repo, &gh.ListContributorsOptions{
			ListOptions: gh.ListOptions{PerPage: perPage, Page: page},
		})
		if err != nil {
			return err
		}
		contributors = cs
		nextPage = resp.NextPage
		return nil
	})
	if errors.Is(err, ghclient.ErrNotFound) {
		return nil, 0, nil
	}
	return contributors, nextPage, err
}

func (a *apiClient) ListPullRequests(ctx context.Context, org, repo string, page int) ([]*gh.PullRequest, int, error) {
	var prs []*gh.PullRequest
	nextPage := 0
	err := a.policy.Do(ctx, func() error {
		ps, resp, err := a.client.PullRequests.List(ctx, org, repo, &gh.PullRequestListOptions{
			State:       "all",
			Sort:        "created",
			Direction:   "desc",
			ListOptions: gh.ListOptions{PerPage: perPage, Page: page},
		})
		if err != nil {
			return err
		}
		prs = ps
		nextPage = resp.NextPage
		return nil
	})
	if errors.Is(err, ghclient.ErrNotFound) {
		return nil, 0, nil
	}
	return prs, nextPage, err
}

func (a *apiClient) ListPRComments(ctx context.Context, org, repo string, number int) ([]*gh.IssueComment, error) {
	var comments []*gh.IssueComment
	err := a.policy.Do(ctx, func() error {
		cs, _, err := a.client.Issues.ListComments(ctx, org, repo, number, &gh.IssueListCommentsOptions{
			ListOptions: gh.ListOptions{PerPage: perPage},
		})
		if err != nil {
			return err
		}
		comments = cs
		return nil
	})
	if errors.Is(err, ghclient.ErrNotFound) {
		return nil, nil
	}
	return comments, err
}

func (a *apiClient) ListPRReviews(ctx context.Context, org, repo string, number int) ([]*gh.PullRequestReview, error) {
	var reviews []*gh.PullRequestReview
	err := a.policy.Do(ctx, func() error {
		rs, _, err := a.client.PullRequests.ListReviews(ctx, org, repo, number, &gh.ListOptions{PerPage: perPage})
		if err != nil {
			return err
		}
		reviews = rs
		return nil
	})
	if errors.Is(err, ghclient.ErrNotFound) {
		return nil, nil
	}
	return reviews, err
}

func (a *apiClient) ListPRFiles(ctx context.Context, org, repo string, number int) ([]*gh.CommitFile, error) {
	var files []*gh.CommitFile
	err := a.policy.Do(ctx, func() error {
		fs, _, err := a.client.PullRequests.ListFiles(ctx, org, repo, number, &gh.ListOptions{PerPage: perPage})
		if err != nil {
			return err
		}
		files = fs
		return nil
	})
	if errors.Is(err, ghclient.ErrNotFound) {
		return nil, nil
	}
	return files, err
}

func (a *apiClient) ListIssues(ctx context.Context, org, repo string, page int) ([]*gh.Issue, int, error) {
	var issues []*gh.Issue
	nextPage := 0
	err := a.policy.Do(ctx, func() error {
		is, resp, err := a.client.Issues.ListByRepo(ctx, org, repo, &gh.IssueListByRepoOptions{
			State:       "all",
			ListOptions: gh.ListOptions{PerPage: perPage, Page: page},
		})
		if err != nil {
			return err
		}
		issues = is
		nextPage = resp.NextPage
		return nil
	})
	if errors.Is(err, ghclient.ErrNotFound) {
		return nil, 0, nil
	}
	return issues, nextPage, err
}

func (a *apiClient) WaitForQuota(ctx context.Context, minRemaining int) error {
	return a.client.WaitForQuota(ctx, minRemaining, a.sleep, a.logger)
}
