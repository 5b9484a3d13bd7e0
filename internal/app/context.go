package app

import (
	"context"
	"errors"
	"time"

	"dailies/internal/config"
	"dailies/internal/domain"
	"dailies/internal/repo"
	"dailies/internal/turnaround"
)

// ResolveSettings returns the workspace settings row, seeding it from config
// defaults on first use. The seeded row is what the settings surface edits
// afterwards; config defaults are only consulted when no row exists yet.
func ResolveSettings(ctx context.Context, r repo.Repo, cfg *config.Config) (domain.Settings, error) {
	s, err := r.GetSettings(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Settings{}, err
	}
	seed := domain.Settings{
		OrangeThreshold: turnaround.DefaultThresholds.Orange,
		RedThreshold:    turnaround.DefaultThresholds.Red,
		Rule:            string(turnaround.RuleBusiness),
		UpdatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	if cfg != nil {
		seed.OrangeThreshold = cfg.Defaults.OrangeThreshold
		seed.RedThreshold = cfg.Defaults.RedThreshold
		seed.Rule = cfg.Defaults.Rule
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Settings{}, err
	}
	defer tx.Rollback()
	if err := r.UpsertSettings(ctx, tx, seed); err != nil {
		return domain.Settings{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Settings{}, err
	}
	return seed, nil
}
