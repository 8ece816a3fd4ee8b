// Package main provides the ContribConnect ingestion and administration CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/contribconnect/contribconnect/internal/archive"
	ghclient "github.com/contribconnect/contribconnect/internal/github"
	"github.com/contribconnect/contribconnect/internal/graph"
	"github.com/contribconnect/contribconnect/internal/ingest"
	"github.com/contribconnect/contribconnect/internal/repos"
	"github.com/contribconnect/contribconnect/internal/secrets"
)

var rootCmd = &cobra.Command{
	Use:   "cc-sync",
	Short: "ContribConnect ingestion and repository administration tool",
	Long:  "CLI tool for crawling GitHub repository activity into the contribution graph and managing repository configuration",
}

var (
	flagMode string
	flagRepo string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Crawl GitHub activity for the enabled repository batch",
	Long: `Runs the ingestion crawler over enabled repositories (up to 5 per run).

Modes:
  contributors  contributor list only
  prs           comprehensive PR scrape (comments, reviews, files; resumable)
  full          contributors + comprehensive PRs + issues
  basic         legacy bounded scrape for small or quick runs

Environment variables:
  GRAPH_DB_PATH  Badger database directory (default: ./data/graph)
  ARCHIVE_DIR    optional directory for raw API payload archiving
  GITHUB_TOKEN   GitHub API token (required)`,
	RunE: runIngest,
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage repository configuration",
}

var reposAddCmd = &cobra.Command{
	Use:   "add org/repo",
	Short: "Register a repository for ingestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(ctx context.Context, registry *repos.Registry) error {
			org, repo, err := splitRepo(args[0])
			if err != nil {
				return err
			}
			cfg, err := registry.Add(ctx, org, repo, true)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (enabled=%t)\n", cfg.FullName(), cfg.Enabled)
			return nil
		})
	},
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(ctx context.Context, registry *repos.Registry) error {
			configs, err := registry.List(ctx, false)
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				fmt.Println("No repositories configured")
				return nil
			}
			for _, cfg := range configs {
				status := "disabled"
				if cfg.Enabled {
					status = "enabled"
				}
				fmt.Printf("%-40s %-8s status=%-8s checkpoint=PR#%d\n",
					cfg.FullName(), status, cfg.IngestStatus, cfg.LastProcessedPR)
				if cfg.LastError != "" {
					fmt.Printf("  last error: %s\n", cfg.LastError)
				}
			}
			return nil
		})
	},
}

var reposRemoveCmd = &cobra.Command{
	Use:   "remove org/repo",
	Short: "Remove a repository's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(ctx context.Context, registry *repos.Registry) error {
			org, repo, err := splitRepo(args[0])
			if err != nil {
				return err
			}
			if err := registry.Remove(ctx, org, repo); err != nil {
				return err
			}
			fmt.Printf("Removed %s/%s\n", org, repo)
			return nil
		})
	},
}

func setEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " org/repo",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(ctx context.Context, registry *repos.Registry) error {
				org, repo, err := splitRepo(args[0])
				if err != nil {
					return err
				}
				if err := registry.SetEnabled(ctx, org, repo, enabled); err != nil {
					return err
				}
				fmt.Printf("%s/%s %sd\n", org, repo, use)
				return nil
			})
		},
	}
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or reset ingestion checkpoints",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show org/repo",
	Short: "Show the last processed PR number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(ctx context.Context, registry *repos.Registry) error {
			org, repo, err := splitRepo(args[0])
			if err != nil {
				return err
			}
			checkpoint, err := registry.Checkpoint(ctx, org, repo)
			if err != nil {
				return err
			}
			if checkpoint == 0 {
				fmt.Printf("%s/%s: no checkpoint (next run starts from the newest PR)\n", org, repo)
			} else {
				fmt.Printf("%s/%s: last processed PR #%d\n", org, repo, checkpoint)
			}
			return nil
		})
	},
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset org/repo",
	Short: "Clear resume state so the next crawl starts from the newest PR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(func(ctx context.Context, registry *repos.Registry) error {
			org, repo, err := splitRepo(args[0])
			if err != nil {
				return err
			}
			if err := registry.ResetCheckpoint(ctx, org, repo); err != nil {
				return err
			}
			fmt.Printf("Checkpoint reset for %s/%s\n", org, repo)
			return nil
		})
	},
}

func init() {
	ingestCmd.Flags().StringVar(&flagMode, "mode", string(ingest.ModeContributors),
		"ingestion mode: contributors, prs, full, or basic")
	ingestCmd.Flags().StringVar(&flagRepo, "repo", "",
		"single org/repo to ingest instead of the enabled batch")

	reposCmd.AddCommand(reposAddCmd, reposListCmd, reposRemoveCmd,
		setEnabledCmd("enable", "Enable a repository for ingestion", true),
		setEnabledCmd("disable", "Disable a repository without removing its data", false))
	checkpointCmd.AddCommand(checkpointShowCmd, checkpointResetCmd)
	rootCmd.AddCommand(ingestCmd, reposCmd, checkpointCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()
	logger := slog.Default()

	mode := ingest.Mode(flagMode)
	if err := mode.Validate(); err != nil {
		return err
	}

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()
	registry := repos.NewRegistry(store, logger)

	provider := secrets.NewEnvProvider()
	token, err := provider.Get(ctx, secrets.GitHubToken)
	if err != nil {
		return fmt.Errorf("github token not configured: %w", err)
	}
	client, err := ghclient.NewClient(ctx, token)
	if err != nil {
		return fmt.Errorf("create GitHub client: %w", err)
	}

	var sink archive.Sink = archive.Nop{}
	if dir := os.Getenv("ARCHIVE_DIR"); dir != "" {
		sink = archive.NewDir(dir)
	}

	crawler := ingest.NewCrawler(ingest.NewAPI(client, logger), store, registry, sink, logger)

	var batch *ingest.BatchResult
	if flagRepo != "" {
		org, repo, err := splitRepo(flagRepo)
		if err != nil {
			return err
		}
		batch, err = crawler.RunRepository(ctx, org, repo, mode)
		if err != nil {
			return err
		}
	} else {
		batch, err = crawler.Run(ctx, mode)
		if err != nil {
			return err
		}
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Repositories: %d (%d ok, %d failed)\n",
		batch.TotalProcessed, batch.Successful, batch.Failed)
	for _, result := range batch.Results {
		fmt.Printf("  %s: %s\n", result.Repository, result.Status)
		if result.Stats != nil {
			s := result.Stats
			fmt.Printf("    contributors=%d prs=%d issues=%d comments=%d reviews=%d files=%d apiCalls=%d\n",
				s.Contributors, s.PRsProcessed, s.Issues, s.Comments, s.Reviews, s.Files, s.APICalls)
			for _, e := range s.Errors {
				fmt.Printf("    error: %s\n", e)
			}
		}
	}
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

// withRegistry opens the store, runs fn against a registry, and closes.
func withRegistry(fn func(context.Context, *repos.Registry) error) error {
	logger := slog.Default()
	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(context.Background(), repos.NewRegistry(store, logger))
}

func openStore(logger *slog.Logger) (*graph.Store, error) {
	cfg := graph.DefaultConfig(getEnv("GRAPH_DB_PATH", "./data/graph"))
	cfg.Logger = logger
	store, err := graph.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	return store, nil
}

func splitRepo(full string) (string, string, error) {
	parts := strings.SplitN(full, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be in org/repo format, got %q", full)
	}
	return parts[0], parts[1], nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
