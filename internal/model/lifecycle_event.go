// internal/model/lifecycle_event.go
package model

import "time"

type EventType string

const (
	EventSuspended        EventType = "campaign.suspended"
	EventReleaseRequested EventType = "campaign.release_requested"
	EventReleased         EventType = "campaign.released"
)

// LifecycleEvent is emitted after a transition has been persisted.
type LifecycleEvent struct {
	ID                string    `json:"id"`
	Type              EventType `json:"type"`
	CampaignID        string    `json:"campaign_id"`
	OwnerID           string    `json:"owner_id"`
	RaisedAmount      float64   `json:"raised_amount"`
	ActiveCampaignIDs []string  `json:"active_campaign_ids,omitempty"` // suspension only
	OccurredAt        time.Time `json:"occurred_at"`
}
