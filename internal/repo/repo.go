package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dailies/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const assetColumns = `id,name,vendor,version,COALESCE(notes,'') AS notes,last_reviewed_at,created_at,updated_at`

func scanAsset(row *sql.Row) (domain.Asset, error) {
	var a domain.Asset
	err := row.Scan(&a.ID, &a.Name, &a.Vendor, &a.Version, &a.Notes, &a.LastReviewedAt, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertAsset(ctx context.Context, tx *sql.Tx, a domain.Asset) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assets(id,name,vendor,version,notes,last_reviewed_at,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Vendor, a.Version, nullable(a.Notes), a.LastReviewedAt, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) UpdateAsset(ctx context.Context, tx *sql.Tx, a domain.Asset) error {
	res, err := tx.ExecContext(ctx, `UPDATE assets SET name=?,vendor=?,version=?,notes=?,last_reviewed_at=?,updated_at=? WHERE id=?`,
		a.Name, a.Vendor, a.Version, nullable(a.Notes), a.LastReviewedAt, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	return scanAsset(r.DB.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=?`, id))
}

func (r Repo) GetAssetTx(ctx context.Context, tx *sql.Tx, id string) (domain.Asset, error) {
	return scanAsset(tx.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=?`, id))
}

// GetAssetByNameVendor resolves the import upsert key.
func (r Repo) GetAssetByNameVendor(ctx context.Context, tx *sql.Tx, name, vendor string) (domain.Asset, error) {
	return scanAsset(tx.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE name=? AND vendor=?`, name, vendor))
}

func (r Repo) DeleteAsset(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssetFilters restrict and order a listing. Alert-level filtering happens
// in the engine, after derivation; only stored fields are filterable here.
type AssetFilters struct {
	Vendor string
	Search string
	SortBy string // name, vendor, version, last_reviewed, created
	Desc   bool
	Limit  int
}

var sortColumns = map[string]string{
	"":              "last_reviewed_at",
	"name":          "name",
	"vendor":        "vendor",
	"version":       "version",
	"last_reviewed": "last_reviewed_at",
	"created":       "created_at",
}

func (r Repo) ListAssets(ctx context.Context, f AssetFilters) ([]domain.Asset, error) {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		return nil, fmt.Errorf("invalid sort field %q", f.SortBy)
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Vendor != "" {
		clauses = append(clauses, "vendor=?")
		args = append(args, f.Vendor)
	}
	if f.Search != "" {
		clauses = append(clauses, "name LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	query := `SELECT ` + assetColumns + ` FROM assets WHERE ` + strings.Join(clauses, " AND ") +
		fmt.Sprintf(` ORDER BY %s %s, id ASC`, col, dir)
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Asset
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Vendor, &a.Version, &a.Notes, &a.LastReviewedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) ListVendors(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT vendor FROM assets ORDER BY vendor`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r Repo) GetSettings(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := r.DB.QueryRowContext(ctx, `SELECT orange_threshold,red_threshold,rule,updated_at FROM settings WHERE id=1`).
		Scan(&s.OrangeThreshold, &s.RedThreshold, &s.Rule, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) UpsertSettings(ctx context.Context, tx *sql.Tx, s domain.Settings) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO settings(id,orange_threshold,red_threshold,rule,updated_at) VALUES (1,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET orange_threshold=excluded.orange_threshold, red_threshold=excluded.red_threshold, rule=excluded.rule, updated_at=excluded.updated_at`,
		s.OrangeThreshold, s.RedThreshold, s.Rule, s.UpdatedAt)
	return err
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,'') AS entity_id,actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
