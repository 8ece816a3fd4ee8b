package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func decodeConfig(value []byte, cfg *Config) error {
	return json.Unmarshal(value, cfg)
}

// Checkpoint returns the last-processed pull request number for a
// repository, or 0 when no prior progress exists. A checkpoint of K means
// every PR with number >= K was fully processed by an earlier run; resuming
// processes only PRs below K.
func (r *Registry) Checkpoint(ctx context.Context, org, repo string) (int, error) {
	cfg, err := r.Get(ctx, org, repo)
	if errors.Is(err, ErrRepoNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cfg.LastProcessedPR, nil
}

// SetCheckpoint persists the last-processed PR number. The entry is
// auto-created when missing. Checkpoint updates for one repository are
// serialized by the crawler's sequential processing; there is no
// cross-repository coordination to do.
func (r *Registry) SetCheckpoint(ctx context.Context, org, repo string, prNumber int, at time.Time) error {
	cfg, err := r.Get(ctx, org, repo)
	if errors.Is(err, ErrRepoNotFound) {
		cfg, err = r.Add(ctx, org, repo, true)
	}
	if err != nil {
		return err
	}
	cfg.LastProcessedPR = prNumber
	cfg.CheckpointAt = at.UTC()
	cfg.UpdatedAt = time.Now().UTC()
	if err := r.store.PutJSON(ctx, key(org, repo), cfg); err != nil {
		return fmt.Errorf("set checkpoint %s/%s: %w", org, repo, err)
	}
	return nil
}

// ResetCheckpoint clears resume state so the next comprehensive crawl starts
// from the newest PR.
func (r *Registry) ResetCheckpoint(ctx context.Context, org, repo string) error {
	return r.SetCheckpoint(ctx, org, repo, 0, time.Time{})
}
