package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/contribconnect/contribconnect/internal/query"
)

// Tool names exposed to the model.
const (
	toolTopContributors = "get_top_contributors"
	toolFindReviewers   = "find_reviewers"
	toolRelatedIssues   = "find_related_issues"
)

// toolDefinitions declares the graph tools for the chat completion request.
func toolDefinitions() []openai.ChatCompletionToolParam {
	repoProp := map[string]any{
		"type":        "string",
		"description": "Repository in org/name format",
	}
	return []openai.ChatCompletionToolParam{
		{
			Function: openai.FunctionDefinitionParam{
				Name:        toolTopContributors,
				Description: openai.String("Get the most active contributors for a repository based on ingested GitHub contribution history."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"repo": repoProp,
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of contributors to return (default 10)",
						},
					},
					"required": []string{"repo"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        toolFindReviewers,
				Description: openai.String("Find expert reviewers for a set of issue labels based on authorship history, falling back to top contributors."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"repo": repoProp,
						"labels": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Issue labels to find reviewers for",
						},
					},
					"required": []string{"repo"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        toolRelatedIssues,
				Description: openai.String("Find issues related to a given issue by shared labels."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"repo": repoProp,
						"issueId": map[string]any{
							"type":        "string",
							"description": "Graph issue id such as issue#org/repo#42",
						},
					},
					"required": []string{"repo", "issueId"},
				},
			},
		},
	}
}

// toolArgs is the superset of parameters any graph tool accepts.
type toolArgs struct {
	Repo    string   `json:"repo"`
	Limit   int      `json:"limit"`
	Labels  []string `json:"labels"`
	IssueID string   `json:"issueId"`
}

// dispatchTool routes one tool call to the query layer and returns the
// result as a JSON string for the tool message. Query failures become error
// payloads the model can relay, not loop aborts.
func dispatchTool(ctx context.Context, store query.Store, name, arguments string) string {
	var args toolArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return errorPayload(fmt.Errorf("parse tool arguments: %w", err))
	}

	var result any
	var err error
	switch name {
	case toolTopContributors:
		result, err = query.TopContributors(ctx, store, args.Repo, args.Limit)
	case toolFindReviewers:
		result, err = query.FindReviewers(ctx, store, args.Labels, args.Repo)
	case toolRelatedIssues:
		result, err = query.RelatedIssues(ctx, store, args.IssueID, args.Repo)
	default:
		err = fmt.Errorf("unknown tool %q", name)
	}
	if err != nil {
		return errorPayload(err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return errorPayload(fmt.Errorf("encode tool result: %w", err))
	}
	return string(payload)
}

func errorPayload(err error) string {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(payload)
}
