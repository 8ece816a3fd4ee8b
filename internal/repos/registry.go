// Package repos manages repository configuration records: which repositories
// the crawler processes, their ingestion status, and the per-repository
// checkpoint cursor that makes a long pull-request crawl resumable.
package repos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/contribconnect/contribconnect/internal/graph"
)

// keyPrefix partitions repository config records inside the shared store.
const keyPrefix = "repo!"

// Ingestion status values recorded after each crawler run.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultBatchSize caps how many enabled repositories one ingestion run
// processes.
const DefaultBatchSize = 5

var ErrRepoNotFound = errors.New("repository not configured")

// Config is one repository's configuration entry.
type Config struct {
	Org             string    `json:"org"`
	Repo            string    `json:"repo"`
	Enabled         bool      `json:"enabled"`
	Description     string    `json:"description,omitempty"`
	Language        string    `json:"language,omitempty"`
	Stars           int       `json:"stars,omitempty"`
	Topics          []string  `json:"topics,omitempty"`
	IngestCursor    string    `json:"ingestCursor,omitempty"`
	IngestStatus    string    `json:"ingestStatus"`
	LastIngestAt    time.Time `json:"lastIngestAt,omitzero"`
	LastError       string    `json:"lastError,omitempty"`
	LastProcessedPR int       `json:"lastProcessedPR"`
	CheckpointAt    time.Time `json:"lastCheckpointAt,omitzero"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FullName returns "org/repo".
func (c *Config) FullName() string { return c.Org + "/" + c.Repo }

// Registry reads and writes repository configuration through the shared
// graph store handle. Each repository's record is independent; no
// cross-repository coordination is needed because ingestion processes
// repositories sequentially.
type Registry struct {
	store  *graph.Store
	logger *slog.Logger
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store *graph.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger}
}

func key(org, repo string) string { return keyPrefix + org + "/" + repo }

// Add registers a repository with default ingestion state. An existing entry
// is overwritten.
func (r *Registry) Add(ctx context.Context, org, repo string, enabled bool) (*Config, error) {
	now := time.Now().UTC()
	cfg := &Config{
		Org:          org,
		Repo:         repo,
		Enabled:      enabled,
		Description:  fmt.Sprintf("%s/%s repository", org, repo),
		IngestCursor: "2024-01-01T00:00:00Z",
		IngestStatus: StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.PutJSON(ctx, key(org, repo), cfg); err != nil {
		return nil, fmt.Errorf("add repository %s/%s: %w", org, repo, err)
	}
	return cfg, nil
}

// Get loads one repository's configuration.
func (r *Registry) Get(ctx context.Context, org, repo string) (*Config, error) {
	var cfg Config
	err := r.store.GetJSON(ctx, key(org, repo), &cfg)
	if err != nil {
		if errors.Is(err, graph.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRepoNotFound, org, repo)
		}
		return nil, fmt.Errorf("get repository %s/%s: %w", org, repo, err)
	}
	return &cfg, nil
}

// List returns configured repositories sorted by full name. With enabledOnly
// set, disabled entries are dropped.
func (r *Registry) List(ctx context.Context, enabledOnly bool) ([]*Config, error) {
	var configs []*Config
	err := r.store.ScanJSON(ctx, keyPrefix, func(k string, value []byte) error {
		var cfg Config
		if err := decodeConfig(value, &cfg); err != nil {
			r.logger.Warn("skipping undecodable repo record", "key", k, "error", err)
			return nil
		}
		if enabledOnly && !cfg.Enabled {
			return nil
		}
		configs = append(configs, &cfg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].FullName() < configs[j].FullName()
	})
	return configs, nil
}

// Remove deletes a repository's configuration entry. Graph records for the
// repository are left in place; they are overwritten or orphaned harmlessly.
func (r *Registry) Remove(ctx context.Context, org, repo string) error {
	if err := r.store.DeleteKey(ctx, key(org, repo)); err != nil {
		return fmt.Errorf("remove repository %s/%s: %w", org, repo, err)
	}
	return nil
}

// SetEnabled flips the enabled flag, creating the entry if absent.
func (r *Registry) SetEnabled(ctx context.Context, org, repo string, enabled bool) error {
	cfg, err := r.Get(ctx, org, repo)
	if errors.Is(err, ErrRepoNotFound) {
		_, err = r.Add(ctx, org, repo, enabled)
		return err
	}
	if err != nil {
		return err
	}
	cfg.Enabled = enabled
	cfg.UpdatedAt = time.Now().UTC()
	return r.store.PutJSON(ctx, key(org, repo), cfg)
}

// RecordIngest updates the post-run ingestion status for a repository. The
// entry is auto-created when missing so a run against an unregistered
// repository still leaves a status trail.
func (r *Registry) RecordIngest(ctx context.Context, org, repo, status, lastError string) error {
	cfg, err := r.Get(ctx, org, repo)
	if errors.Is(err, ErrRepoNotFound) {
		cfg, err = r.Add(ctx, org, repo, true)
	}
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	cfg.IngestStatus = status
	cfg.LastIngestAt = now
	cfg.LastError = lastError
	cfg.UpdatedAt = now
	return r.store.PutJSON(ctx, key(org, repo), cfg)
}
