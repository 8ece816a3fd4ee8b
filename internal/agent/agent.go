// Package agent runs the conversational tool-use loop: an LLM chat
// completion with the graph tools attached, dispatching tool calls to the
// query layer until the model produces a final answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/contribconnect/contribconnect/internal/query"
)

// maxToolRounds bounds how many tool-call exchanges one user turn may take.
const maxToolRounds = 5

const systemPrompt = `You are ContribConnect, an AI assistant that helps developers find the right people to review their code and contribute to open source projects.

You have access to graph tools over ingested GitHub contribution history:
- get_top_contributors: the most active contributors for a repository
- find_reviewers: expert reviewers based on issue labels
- find_related_issues: related issues based on shared labels

When helping users:
- Always ask for the repository name (org/repo format) if not provided
- Provide specific, actionable recommendations with GitHub usernames
- Be concise and helpful

Remember: You're helping developers connect with the right people to review their work.`

// Agent orchestrates chat completions with graph tool dispatch.
type Agent struct {
	client   *openai.Client
	store    query.Store
	sessions *SessionStore
	model    openai.ChatModel
	logger   *slog.Logger
}

// New creates an agent. An empty model selects GPT-4o.
func New(client *openai.Client, store query.Store, sessions *SessionStore, model string, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	m := openai.ChatModelGPT4o
	if model != "" {
		m = openai.ChatModel(model)
	}
	return &Agent{
		client:   client,
		store:    store,
		sessions: sessions,
		model:    m,
		logger:   logger,
	}
}

// Chat runs one user turn: prior session history plus the new message, with
// up to maxToolRounds tool exchanges, returning the assistant's final text
// and the session id for follow-ups.
func (a *Agent) Chat(ctx context.Context, sessionID, userMessage string) (string, string, error) {
	session, err := a.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", "", err
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	for _, msg := range session.Messages {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userMessage))

	var final string
	for round := 0; ; round++ {
		resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    a.model,
			Messages: messages,
			Tools:    toolDefinitions(),
		})
		if err != nil {
			return "", "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", "", fmt.Errorf("chat completion returned no choices")
		}

		message := resp.Choices[0].Message
		if len(message.ToolCalls) == 0 {
			final = message.Content
			break
		}
		if round >= maxToolRounds {
			a.logger.Warn("tool round limit reached", "session", session.ID)
			final = message.Content
			break
		}

		messages = append(messages, message.ToParam())
		for _, call := range message.ToolCalls {
			a.logger.Info("dispatching tool call",
				"session", session.ID,
				"tool", call.Function.Name,
			)
			result := dispatchTool(ctx, a.store, call.Function.Name, call.Function.Arguments)
			messages = append(messages, openai.ToolMessage(result, call.ID))
		}
	}

	session.Messages = append(session.Messages,
		SessionMessage{Role: "user", Content: userMessage},
		SessionMessage{Role: "assistant", Content: final},
	)
	if err := a.sessions.Save(ctx, session); err != nil {
		// A failed history save degrades continuity, not the answer.
		a.logger.Warn("session save failed", "session", session.ID, "error", err)
	}

	return final, session.ID, nil
}
