package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/contribconnect/contribconnect/internal/query"
	"github.com/contribconnect/contribconnect/internal/repos"
)

// makeTopContributorsHandler creates the get_top_contributors tool handler.
func makeTopContributorsHandler(store query.Store) func(
	context.Context, *mcp.CallToolRequest, TopContributorsInput,
) (*mcp.CallToolResult, TopContributorsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input TopContributorsInput) (
		*mcp.CallToolResult, TopContributorsOutput, error,
	) {
		result, err := query.TopContributors(ctx, store, input.Repo, input.Limit)
		if err != nil {
			if errors.Is(err, query.ErrValidation) {
				return nil, TopContributorsOutput{}, err
			}
			return nil, TopContributorsOutput{}, fmt.Errorf("top contributors query failed: %w", err)
		}

		out := TopContributorsOutput{
			Repository:    result.Repository,
			Contributors:  result.Contributors,
			Total:         result.Total,
			DataAvailable: result.DataAvailable,
		}
		if !result.DataAvailable {
			out.Message = "No contribution data yet for this repository. Run ingestion first."
		}
		return nil, out, nil
	}
}

// makeFindReviewersHandler creates the find_reviewers tool handler.
func makeFindReviewersHandler(store query.Store) func(
	context.Context, *mcp.CallToolRequest, FindReviewersInput,
) (*mcp.CallToolResult, FindReviewersOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FindReviewersInput) (
		*mcp.CallToolResult, FindReviewersOutput, error,
	) {
		result, err := query.FindReviewers(ctx, store, input.Labels, input.Repo)
		if err != nil {
			if errors.Is(err, query.ErrValidation) {
				return nil, FindReviewersOutput{}, err
			}
			return nil, FindReviewersOutput{}, fmt.Errorf("reviewer query failed: %w", err)
		}

		return nil, FindReviewersOutput{
			Labels:             result.Labels,
			Repository:         result.Repository,
			SuggestedReviewers: result.SuggestedReviewers,
			LabelExperts:       result.LabelExperts,
			Note:               result.Note,
		}, nil
	}
}

// makeRelatedIssuesHandler creates the find_related_issues tool handler. A
// missing issue is a structured not-found outcome for the model to act on,
// not a tool error.
func makeRelatedIssuesHandler(store query.Store) func(
	context.Context, *mcp.CallToolRequest, RelatedIssuesInput,
) (*mcp.CallToolResult, RelatedIssuesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RelatedIssuesInput) (
		*mcp.CallToolResult, RelatedIssuesOutput, error,
	) {
		result, err := query.RelatedIssues(ctx, store, input.IssueID, input.Repo)
		if err != nil {
			if errors.Is(err, query.ErrValidation) {
				return nil, RelatedIssuesOutput{}, err
			}
			return nil, RelatedIssuesOutput{}, fmt.Errorf("related issues query failed: %w", err)
		}

		return nil, RelatedIssuesOutput{
			NotFound:      result.NotFound,
			Guidance:      result.Guidance,
			HelpfulTips:   result.HelpfulTips,
			OriginalIssue: result.OriginalIssue,
			RelatedIssues: result.RelatedIssues,
			Repository:    result.Repository,
			TotalFound:    result.TotalFound,
		}, nil
	}
}

// makeIngestStatusHandler creates the get_ingest_status tool handler.
func makeIngestStatusHandler(registry *repos.Registry) func(
	context.Context, *mcp.CallToolRequest, IngestStatusInput,
) (*mcp.CallToolResult, IngestStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestStatusInput) (
		*mcp.CallToolResult, IngestStatusOutput, error,
	) {
		configs, err := registry.List(ctx, false)
		if err != nil {
			return nil, IngestStatusOutput{}, fmt.Errorf("list repositories failed: %w", err)
		}

		statuses := make([]RepoStatus, 0, len(configs))
		for _, cfg := range configs {
			statuses = append(statuses, RepoStatus{
				Repository:      cfg.FullName(),
				Enabled:         cfg.Enabled,
				IngestStatus:    cfg.IngestStatus,
				LastIngestAt:    cfg.LastIngestAt,
				LastProcessedPR: cfg.LastProcessedPR,
				LastError:       cfg.LastError,
			})
		}
		return nil, IngestStatusOutput{Repositories: statuses, Count: len(statuses)}, nil
	}
}
