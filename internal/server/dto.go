package server

import (
	"encoding/json"

	"dailies/internal/domain"
	"dailies/internal/engine"
)

// Request payloads

type CreateAssetRequest struct {
	ID             *string `json:"id,omitempty"`
	Name           string  `json:"name"`
	Vendor         string  `json:"vendor"`
	Version        *int    `json:"version,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	LastReviewedAt *string `json:"last_reviewed_at,omitempty" format:"date-time"`
}

type UpdateAssetRequest struct {
	Name           *string `json:"name,omitempty"`
	Vendor         *string `json:"vendor,omitempty"`
	Version        *int    `json:"version,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	LastReviewedAt *string `json:"last_reviewed_at,omitempty" format:"date-time"`
}

type ReviewAssetRequest struct {
	ReviewedAt *string `json:"reviewed_at,omitempty" format:"date-time"`
}

type UpdateSettingsRequest struct {
	OrangeThreshold *int    `json:"orange_threshold,omitempty" minimum:"1" maximum:"30"`
	RedThreshold    *int    `json:"red_threshold,omitempty" minimum:"1" maximum:"60"`
	Rule            *string `json:"rule,omitempty" enum:"business,legacy"`
}

// Response payloads

type AssetResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Vendor         string `json:"vendor"`
	Version        int    `json:"version"`
	Notes          string `json:"notes,omitempty"`
	LastReviewedAt string `json:"last_reviewed_at" format:"date-time"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
	CalendarDays   int    `json:"calendar_days"`
	BusinessDays   int    `json:"business_days"`
	AlertLevel     string `json:"alert_level" enum:"normal,orange,red"`
	Message        string `json:"message,omitempty"`
}

type SettingsResponse struct {
	OrangeThreshold int    `json:"orange_threshold"`
	RedThreshold    int    `json:"red_threshold"`
	Rule            string `json:"rule" enum:"business,legacy"`
	UpdatedAt       string `json:"updated_at" format:"date-time"`
}

type HolidaysResponse struct {
	Year     int      `json:"year"`
	Holidays []string `json:"holidays"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type statusResponse struct {
	Counts map[string]int `json:"counts"`
}

// Conversion helpers

func assetResponse(v engine.AssetView) AssetResponse {
	return AssetResponse{
		ID:             v.ID,
		Name:           v.Name,
		Vendor:         v.Vendor,
		Version:        v.Version,
		Notes:          v.Notes,
		LastReviewedAt: v.LastReviewedAt,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
		CalendarDays:   v.CalendarDays,
		BusinessDays:   v.BusinessDays,
		AlertLevel:     string(v.AlertLevel),
		Message:        v.Message,
	}
}

func settingsResponse(s domain.Settings) SettingsResponse {
	return SettingsResponse(s)
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}
