// Package main provides a conversational CLI over the contribution graph.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/contribconnect/contribconnect/internal/agent"
	"github.com/contribconnect/contribconnect/internal/graph"
	"github.com/contribconnect/contribconnect/internal/secrets"
)

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger := slog.Default()

	provider := secrets.NewEnvProvider()
	apiKey, err := provider.Get(ctx, secrets.OpenAIAPIKey)
	if err != nil {
		log.Fatalf("OpenAI API key not configured: %v", err)
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))

	cfg := graph.DefaultConfig(getEnv("GRAPH_DB_PATH", "./data/graph"))
	cfg.Logger = logger
	store, err := graph.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open graph store: %v", err)
	}
	defer store.Close()

	bot := agent.New(&client, store, agent.NewSessionStore(store), getEnv("AGENT_MODEL", ""), logger)

	fmt.Println("ContribConnect agent. Ask about contributors, reviewers, or related issues.")
	fmt.Println("Type 'exit' to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	sessionID := ""
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply, sid, err := bot.Chat(ctx, sessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Printf("error: %v\n", err)
			continue
		}
		sessionID = sid
		fmt.Println(reply)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		log.Printf("input error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
