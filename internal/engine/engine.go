package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"dailies/internal/app"
	"dailies/internal/calendar"
	"dailies/internal/config"
	"dailies/internal/domain"
	"dailies/internal/events"
	"dailies/internal/repo"
	"dailies/internal/turnaround"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Calendar *calendar.Calendar
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Calendar: cfg.Calendar(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// AssetView is an asset plus its derived turnaround state. The derived
// fields are recomputed on every query and never persisted.
type AssetView struct {
	domain.Asset
	CalendarDays int              `json:"calendar_days"`
	BusinessDays int              `json:"business_days"`
	AlertLevel   turnaround.Level `json:"alert_level" enum:"normal,orange,red"`
	Message      string           `json:"message,omitempty"`
}

func parseInstant(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s timestamp %q: %w", field, value, err)
	}
	return t, nil
}

func (e Engine) view(a domain.Asset, s domain.Settings, now time.Time) (AssetView, error) {
	reviewed, err := parseInstant("last_reviewed_at", a.LastReviewedAt)
	if err != nil {
		return AssetView{}, err
	}
	res := turnaround.Compute(reviewed, now, e.Calendar,
		turnaround.Thresholds{Orange: s.OrangeThreshold, Red: s.RedThreshold},
		turnaround.Rule(s.Rule))
	return AssetView{
		Asset:        a,
		CalendarDays: res.CalendarDays,
		BusinessDays: res.BusinessDays,
		AlertLevel:   res.Level,
		Message:      res.Message,
	}, nil
}

// Settings returns the workspace settings, seeding defaults on first use.
func (e Engine) Settings(ctx context.Context) (domain.Settings, error) {
	return app.ResolveSettings(ctx, e.Repo, e.Config)
}

// SettingsUpdateOptions are parameters for updating the settings record.
// Nil fields are left unchanged.
type SettingsUpdateOptions struct {
	OrangeThreshold *int
	RedThreshold    *int
	Rule            *string
	ActorID         string
}

// UpdateSettings validates the threshold ranges here, at the caller edge.
// The classifier itself accepts any pair and does not assume red > orange.
func (e Engine) UpdateSettings(ctx context.Context, opts SettingsUpdateOptions) (domain.Settings, error) {
	s, err := e.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if opts.OrangeThreshold != nil {
		if *opts.OrangeThreshold < 1 || *opts.OrangeThreshold > 30 {
			return domain.Settings{}, errors.New("orange threshold must be in [1,30]")
		}
		s.OrangeThreshold = *opts.OrangeThreshold
	}
	if opts.RedThreshold != nil {
		if *opts.RedThreshold < 1 || *opts.RedThreshold > 60 {
			return domain.Settings{}, errors.New("red threshold must be in [1,60]")
		}
		s.RedThreshold = *opts.RedThreshold
	}
	if opts.Rule != nil {
		if !turnaround.ValidRule(turnaround.Rule(*opts.Rule)) {
			return domain.Settings{}, fmt.Errorf("invalid rule %q", *opts.Rule)
		}
		s.Rule = *opts.Rule
	}
	s.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Settings{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertSettings(ctx, tx, s); err != nil {
		return domain.Settings{}, err
	}
	if err := e.Events.Append(ctx, tx, "settings.updated", "settings", "", opts.ActorID, events.EventPayload{
		"orange_threshold": s.OrangeThreshold,
		"red_threshold":    s.RedThreshold,
		"rule":             s.Rule,
	}); err != nil {
		return domain.Settings{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

// AssetCreateOptions are parameters for tracking a new asset.
type AssetCreateOptions struct {
	ID             string
	Name           string
	Vendor         string
	Version        int
	Notes          string
	LastReviewedAt string // RFC3339; defaults to now
	ActorID        string
}

func (e Engine) CreateAsset(ctx context.Context, opts AssetCreateOptions) (domain.Asset, error) {
	if opts.Name == "" {
		return domain.Asset{}, errors.New("name is required")
	}
	if opts.Vendor == "" {
		return domain.Asset{}, errors.New("vendor is required")
	}
	if opts.Version == 0 {
		opts.Version = 1
	}
	if opts.Version < 1 {
		return domain.Asset{}, errors.New("version must be >= 1")
	}
	now := e.now().UTC().Format(time.RFC3339)
	reviewed := opts.LastReviewedAt
	if reviewed == "" {
		reviewed = now
	} else if _, err := parseInstant("last_reviewed_at", reviewed); err != nil {
		return domain.Asset{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.Vendor+"|"+opts.Name+"|"+now)).String()
	}
	a := domain.Asset{
		ID:             id,
		Name:           opts.Name,
		Vendor:         opts.Vendor,
		Version:        opts.Version,
		Notes:          opts.Notes,
		LastReviewedAt: reviewed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Asset{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAsset(ctx, tx, a); err != nil {
		return domain.Asset{}, fmt.Errorf("insert asset: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "asset.created", "asset", a.ID, opts.ActorID, events.EventPayload{
		"name": a.Name, "vendor": a.Vendor, "version": a.Version,
	}); err != nil {
		return domain.Asset{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}

// AssetUpdateOptions are parameters for editing a tracked asset. Nil fields
// are left unchanged.
type AssetUpdateOptions struct {
	ID             string
	Name           *string
	Vendor         *string
	Version        *int
	Notes          *string
	LastReviewedAt *string
	ActorID        string
}

func (e Engine) UpdateAsset(ctx context.Context, opts AssetUpdateOptions) (domain.Asset, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Asset{}, err
	}
	defer tx.Rollback()
	a, err := e.Repo.GetAssetTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Asset{}, err
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return domain.Asset{}, errors.New("name cannot be empty")
		}
		a.Name = *opts.Name
	}
	if opts.Vendor != nil {
		if *opts.Vendor == "" {
			return domain.Asset{}, errors.New("vendor cannot be empty")
		}
		a.Vendor = *opts.Vendor
	}
	if opts.Version != nil {
		if *opts.Version < 1 {
			return domain.Asset{}, errors.New("version must be >= 1")
		}
		a.Version = *opts.Version
	}
	if opts.Notes != nil {
		a.Notes = *opts.Notes
	}
	if opts.LastReviewedAt != nil {
		if _, err := parseInstant("last_reviewed_at", *opts.LastReviewedAt); err != nil {
			return domain.Asset{}, err
		}
		a.LastReviewedAt = *opts.LastReviewedAt
	}
	a.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateAsset(ctx, tx, a); err != nil {
		return domain.Asset{}, err
	}
	if err := e.Events.Append(ctx, tx, "asset.updated", "asset", a.ID, opts.ActorID, events.EventPayload{
		"name": a.Name, "vendor": a.Vendor, "version": a.Version,
	}); err != nil {
		return domain.Asset{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}

// MarkReviewed stamps an asset as reviewed at ts (now when empty), resetting
// its turnaround clock.
func (e Engine) MarkReviewed(ctx context.Context, id, ts, actorID string) (domain.Asset, error) {
	if ts == "" {
		ts = e.now().UTC().Format(time.RFC3339)
	} else if _, err := parseInstant("reviewed_at", ts); err != nil {
		return domain.Asset{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Asset{}, err
	}
	defer tx.Rollback()
	a, err := e.Repo.GetAssetTx(ctx, tx, id)
	if err != nil {
		return domain.Asset{}, err
	}
	a.LastReviewedAt = ts
	a.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateAsset(ctx, tx, a); err != nil {
		return domain.Asset{}, err
	}
	if err := e.Events.Append(ctx, tx, "asset.reviewed", "asset", a.ID, actorID, events.EventPayload{
		"reviewed_at": ts, "version": a.Version,
	}); err != nil {
		return domain.Asset{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}

func (e Engine) DeleteAsset(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	a, err := e.Repo.GetAssetTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteAsset(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "asset.deleted", "asset", id, actorID, events.EventPayload{
		"name": a.Name, "vendor": a.Vendor,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetAssetView returns one asset with derived turnaround fields.
func (e Engine) GetAssetView(ctx context.Context, id string) (AssetView, error) {
	a, err := e.Repo.GetAsset(ctx, id)
	if err != nil {
		return AssetView{}, err
	}
	s, err := e.Settings(ctx)
	if err != nil {
		return AssetView{}, err
	}
	return e.view(a, s, e.now())
}

// ListFilters extends stored-field filters with derived-field selection.
type ListFilters struct {
	repo.AssetFilters
	Alert     turnaround.Level // keep only rows at this level
	ByUrgency bool             // sort by business days, most urgent first
}

// ListAssets returns assets with turnaround derived per row at a single
// "now". Alert filtering and urgency ordering run after derivation, since
// those fields exist only at read time.
func (e Engine) ListAssets(ctx context.Context, f ListFilters) ([]AssetView, error) {
	if f.Alert != "" && f.Alert != turnaround.LevelNormal && f.Alert != turnaround.LevelOrange && f.Alert != turnaround.LevelRed {
		return nil, fmt.Errorf("invalid alert level %q", f.Alert)
	}
	assets, err := e.Repo.ListAssets(ctx, f.AssetFilters)
	if err != nil {
		return nil, err
	}
	s, err := e.Settings(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	views := make([]AssetView, 0, len(assets))
	for _, a := range assets {
		v, err := e.view(a, s, now)
		if err != nil {
			return nil, err
		}
		if f.Alert != "" && v.AlertLevel != f.Alert {
			continue
		}
		views = append(views, v)
	}
	if f.ByUrgency {
		sortByUrgency(views)
	}
	return views, nil
}

func sortByUrgency(views []AssetView) {
	// stable so the repo ordering survives among equal counts
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].BusinessDays > views[j].BusinessDays
	})
}

// Status summarizes the workspace: asset counts per alert level.
func (e Engine) Status(ctx context.Context) (map[string]int, error) {
	views, err := e.ListAssets(ctx, ListFilters{})
	if err != nil {
		return nil, err
	}
	counts := map[string]int{
		string(turnaround.LevelNormal): 0,
		string(turnaround.LevelOrange): 0,
		string(turnaround.LevelRed):    0,
	}
	for _, v := range views {
		counts[string(v.AlertLevel)]++
	}
	counts["total"] = len(views)
	return counts, nil
}
