package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dailies/internal/config"
	"dailies/internal/db"
	"dailies/internal/migrate"
	"dailies/internal/repo"
	"dailies/internal/turnaround"
)

// fixedNow keeps derived counts deterministic: a Thursday morning.
var fixedNow = time.Date(2025, time.March, 6, 10, 0, 0, 0, time.UTC)

func testEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := New(conn, config.Default("test-studio"))
	e.Now = func() time.Time { return fixedNow }
	e.Events.Now = e.Now
	return e
}

func reviewedDaysAgo(calDays int) string {
	return fixedNow.AddDate(0, 0, -calDays).Format(time.RFC3339)
}

func TestCreateAndGetAsset(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	a, err := e.CreateAsset(ctx, AssetCreateOptions{
		Name: "hero_rig", Vendor: "acme-vfx", ActorID: "sup-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == "" || a.Version != 1 {
		t.Fatalf("unexpected asset %+v", a)
	}
	if a.LastReviewedAt != fixedNow.UTC().Format(time.RFC3339) {
		t.Fatalf("last reviewed should default to now, got %s", a.LastReviewedAt)
	}
	v, err := e.GetAssetView(ctx, a.ID)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if v.CalendarDays != 0 || v.BusinessDays != 0 || v.AlertLevel != turnaround.LevelNormal {
		t.Fatalf("fresh asset must be normal with zero counts: %+v", v)
	}
}

func TestCreateAssetValidation(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	if _, err := e.CreateAsset(ctx, AssetCreateOptions{Vendor: "v"}); err == nil {
		t.Fatalf("missing name must fail")
	}
	if _, err := e.CreateAsset(ctx, AssetCreateOptions{Name: "a"}); err == nil {
		t.Fatalf("missing vendor must fail")
	}
	_, err := e.CreateAsset(ctx, AssetCreateOptions{
		Name: "a", Vendor: "v", LastReviewedAt: "yesterday",
	})
	if err == nil || !strings.Contains(err.Error(), "last_reviewed_at") {
		t.Fatalf("malformed timestamp must be rejected at the edge, got %v", err)
	}
}

func TestCreateAssetDuplicateNameVendor(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	opts := AssetCreateOptions{Name: "hero_rig", Vendor: "acme-vfx"}
	if _, err := e.CreateAsset(ctx, opts); err != nil {
		t.Fatalf("first create: %v", err)
	}
	opts.ID = "explicit-second-id"
	if _, err := e.CreateAsset(ctx, opts); err == nil {
		t.Fatalf("name+vendor must be unique")
	}
}

func TestMarkReviewedResetsClock(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	a, err := e.CreateAsset(ctx, AssetCreateOptions{
		Name: "env_forest", Vendor: "acme-vfx",
		LastReviewedAt: reviewedDaysAgo(20),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v, err := e.GetAssetView(ctx, a.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.AlertLevel != turnaround.LevelRed {
		t.Fatalf("20 calendar days back should be red, got %s", v.AlertLevel)
	}
	if _, err := e.MarkReviewed(ctx, a.ID, "", "sup-1"); err != nil {
		t.Fatalf("review: %v", err)
	}
	v, err = e.GetAssetView(ctx, a.ID)
	if err != nil {
		t.Fatalf("view after review: %v", err)
	}
	if v.AlertLevel != turnaround.LevelNormal || v.BusinessDays != 0 {
		t.Fatalf("review must reset the clock: %+v", v)
	}
}

func TestMarkReviewedUnknownAsset(t *testing.T) {
	e := testEngine(t)
	_, err := e.MarkReviewed(context.Background(), "nope", "", "sup-1")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAssetPartial(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	a, err := e.CreateAsset(ctx, AssetCreateOptions{Name: "prop_sword", Vendor: "forge"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	notes := "needs new textures"
	version := 3
	updated, err := e.UpdateAsset(ctx, AssetUpdateOptions{
		ID: a.ID, Notes: &notes, Version: &version, ActorID: "sup-1",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Notes != notes || updated.Version != 3 {
		t.Fatalf("unexpected asset %+v", updated)
	}
	if updated.Name != "prop_sword" {
		t.Fatalf("untouched fields must survive, got %+v", updated)
	}
	bad := 0
	if _, err := e.UpdateAsset(ctx, AssetUpdateOptions{ID: a.ID, Version: &bad}); err == nil {
		t.Fatalf("version 0 must be rejected")
	}
}

func TestDeleteAsset(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	a, err := e.CreateAsset(ctx, AssetCreateOptions{Name: "x", Vendor: "y"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.DeleteAsset(ctx, a.ID, "sup-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.GetAssetView(ctx, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListAssetsAlertFilterAndUrgency(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	// Reviewed 1, 8 and 20 calendar days ago: normal, orange, red.
	for _, tc := range []struct {
		name string
		days int
	}{
		{"fresh", 1},
		{"aging", 8},
		{"stale", 20},
	} {
		_, err := e.CreateAsset(ctx, AssetCreateOptions{
			Name: tc.name, Vendor: "acme-vfx",
			LastReviewedAt: reviewedDaysAgo(tc.days),
		})
		if err != nil {
			t.Fatalf("create %s: %v", tc.name, err)
		}
	}
	all, err := e.ListAssets(ctx, ListFilters{ByUrgency: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].BusinessDays > all[i-1].BusinessDays {
			t.Fatalf("urgency order violated at %d: %+v", i, all)
		}
	}
	red, err := e.ListAssets(ctx, ListFilters{Alert: turnaround.LevelRed})
	if err != nil {
		t.Fatalf("list red: %v", err)
	}
	if len(red) != 1 || red[0].Name != "stale" {
		t.Fatalf("expected only the stale asset, got %+v", red)
	}
	if _, err := e.ListAssets(ctx, ListFilters{Alert: "purple"}); err == nil {
		t.Fatalf("unknown alert level must be rejected")
	}
}

func TestSettingsSeedAndUpdate(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	s, err := e.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if s.OrangeThreshold != 5 || s.RedThreshold != 7 || s.Rule != string(turnaround.RuleBusiness) {
		t.Fatalf("defaults not seeded: %+v", s)
	}
	orange, red := 3, 10
	s, err = e.UpdateSettings(ctx, SettingsUpdateOptions{
		OrangeThreshold: &orange, RedThreshold: &red, ActorID: "sup-1",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.OrangeThreshold != 3 || s.RedThreshold != 10 {
		t.Fatalf("unexpected settings %+v", s)
	}
	// Survives a fresh read.
	s, err = e.Settings(ctx)
	if err != nil || s.OrangeThreshold != 3 {
		t.Fatalf("settings not persisted: %+v, %v", s, err)
	}
	tooHigh := 61
	if _, err := e.UpdateSettings(ctx, SettingsUpdateOptions{RedThreshold: &tooHigh}); err == nil {
		t.Fatalf("red threshold 61 must be rejected")
	}
	badRule := "fiscal"
	if _, err := e.UpdateSettings(ctx, SettingsUpdateOptions{Rule: &badRule}); err == nil {
		t.Fatalf("unknown rule must be rejected")
	}
}

func TestLegacyRuleChangesClassification(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	// 9 calendar days back from Thu 2025-03-06 is Tue 2025-02-25:
	// 7 business days elapsed. Under the business rule that is orange
	// (7 is not over red 7); under legacy, 9 calendar days goes red.
	a, err := e.CreateAsset(ctx, AssetCreateOptions{
		Name: "char_walk", Vendor: "acme-vfx",
		LastReviewedAt: reviewedDaysAgo(9),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v, err := e.GetAssetView(ctx, a.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.AlertLevel != turnaround.LevelOrange {
		t.Fatalf("business rule: expected orange, got %s (%d biz days)", v.AlertLevel, v.BusinessDays)
	}
	legacy := string(turnaround.RuleLegacy)
	if _, err := e.UpdateSettings(ctx, SettingsUpdateOptions{Rule: &legacy}); err != nil {
		t.Fatalf("switch rule: %v", err)
	}
	v, err = e.GetAssetView(ctx, a.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.AlertLevel != turnaround.LevelRed {
		t.Fatalf("legacy rule: expected red on 9 calendar days, got %s", v.AlertLevel)
	}
}

func TestStatusCounts(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	for name, days := range map[string]int{"a": 1, "b": 10, "c": 20} {
		if _, err := e.CreateAsset(ctx, AssetCreateOptions{
			Name: name, Vendor: "v", LastReviewedAt: reviewedDaysAgo(days),
		}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	counts, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if counts["total"] != 3 {
		t.Fatalf("expected total 3, got %+v", counts)
	}
	if counts["normal"]+counts["orange"]+counts["red"] != 3 {
		t.Fatalf("levels must sum to total: %+v", counts)
	}
}

func TestEventsRecorded(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	a, err := e.CreateAsset(ctx, AssetCreateOptions{Name: "n", Vendor: "v", ActorID: "sup-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.MarkReviewed(ctx, a.ID, "", "sup-2"); err != nil {
		t.Fatalf("review: %v", err)
	}
	evts, err := e.Repo.LatestEvents(ctx, 10, "", "asset", a.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected created+reviewed events, got %d", len(evts))
	}
	if evts[0].Type != "asset.reviewed" || evts[0].ActorID != "sup-2" {
		t.Fatalf("newest first expected, got %+v", evts[0])
	}
}
