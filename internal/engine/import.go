package engine

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dailies/internal/domain"
	"dailies/internal/events"
	"dailies/internal/repo"
)

// ImportResult summarizes one CSV import run.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

var importHeader = []string{"name", "vendor", "version", "last_reviewed"}

// ImportCSV reads rows of name,vendor,version,last_reviewed and upserts
// assets keyed by name+vendor. Rows with malformed fields are reported and
// skipped; timestamps are validated before anything reaches the store, so
// the turnaround core only ever sees parseable instants.
func (e Engine) ImportCSV(ctx context.Context, r io.Reader, actorID string) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv header: %w", err)
	}
	if err := checkImportHeader(header); err != nil {
		return ImportResult{}, err
	}
	var res ImportResult
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, err
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		name := strings.TrimSpace(record[0])
		vendor := strings.TrimSpace(record[1])
		if name == "" || vendor == "" {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: name and vendor are required", line))
			continue
		}
		version, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil || version < 1 {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: invalid version %q", line, record[2]))
			continue
		}
		reviewed := strings.TrimSpace(record[3])
		if _, err := parseInstant("last_reviewed", reviewed); err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		existing, err := e.Repo.GetAssetByNameVendor(ctx, tx, name, vendor)
		switch {
		case err == nil:
			existing.Version = version
			existing.LastReviewedAt = reviewed
			existing.UpdatedAt = now
			if err := e.Repo.UpdateAsset(ctx, tx, existing); err != nil {
				return ImportResult{}, fmt.Errorf("line %d: update asset: %w", line, err)
			}
			res.Updated++
		case errors.Is(err, repo.ErrNotFound):
			a := domain.Asset{
				ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte(vendor+"|"+name+"|"+now)).String(),
				Name:           name,
				Vendor:         vendor,
				Version:        version,
				LastReviewedAt: reviewed,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := e.Repo.InsertAsset(ctx, tx, a); err != nil {
				return ImportResult{}, fmt.Errorf("line %d: insert asset: %w", line, err)
			}
			res.Created++
		default:
			return ImportResult{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "import.completed", "import", "", actorID, events.EventPayload{
		"created": res.Created,
		"updated": res.Updated,
		"skipped": res.Skipped,
	}); err != nil {
		return ImportResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

func checkImportHeader(header []string) error {
	if len(header) < len(importHeader) {
		return fmt.Errorf("csv header must be %s", strings.Join(importHeader, ","))
	}
	for i, want := range importHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("csv header column %d must be %q, got %q", i+1, want, header[i])
		}
	}
	return nil
}
