package domain

// Asset is a tracked deliverable waiting on (or cleared by) review.
type Asset struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Vendor         string `json:"vendor"`
	Version        int    `json:"version"`
	Notes          string `json:"notes,omitempty"`
	LastReviewedAt string `json:"last_reviewed_at" format:"date-time"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

// Settings is the single mutable settings record for a workspace.
type Settings struct {
	OrangeThreshold int    `json:"orange_threshold"`
	RedThreshold    int    `json:"red_threshold"`
	Rule            string `json:"rule" enum:"business,legacy"`
	UpdatedAt       string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
