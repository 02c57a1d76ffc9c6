// internal/model/campaign.go
package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known campaign statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSuspended, StatusCompleted:
		return true
	}
	return false
}

type ReleaseStatus string

const (
	ReleaseNone      ReleaseStatus = "none"
	ReleaseRequested ReleaseStatus = "requested"
	ReleaseReleased  ReleaseStatus = "released"
)

// Attachments holds stored media paths keyed by kind.
type Attachments struct {
	Image    []string `bson:"image" json:"image"`
	Video    []string `bson:"video" json:"video"`
	Document []string `bson:"document" json:"document"`
}

type Campaign struct {
	ID            string         `bson:"_id" json:"id"`
	Slug          string         `bson:"slug" json:"slug"`
	OwnerID       string         `bson:"owner_id" json:"ownerId"`
	Title         string         `bson:"title" json:"title"`
	Description   string         `bson:"description" json:"description"`
	Category      string         `bson:"category" json:"category"`
	GoalAmount    float64        `bson:"goal_amount" json:"goalAmount"`
	RaisedAmount  float64        `bson:"raised_amount" json:"raisedAmount"`
	StartDate     time.Time      `bson:"start_date" json:"startDate"`
	EndDate       time.Time      `bson:"end_date" json:"endDate"`
	Status        Status         `bson:"status" json:"status"`
	ReleaseStatus ReleaseStatus  `bson:"release_status" json:"releaseStatus"`
	Attachments   Attachments    `bson:"attachments" json:"attachments"`
	Links         []string       `bson:"links" json:"links"`
	Metadata      map[string]any `bson:"metadata,omitempty" json:"-"`
	CreatedAt     time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updatedAt"`
}

// State is the pair of lifecycle fields guarded by conditional updates.
type State struct {
	Status        Status
	ReleaseStatus ReleaseStatus
}

func (c *Campaign) State() State {
	return State{Status: c.Status, ReleaseStatus: c.ReleaseStatus}
}

// CampaignUpdate enumerates the fields an owner or manager may change.
// Nil pointers and nil slices mean "leave untouched".
type CampaignUpdate struct {
	Title       *string
	Description *string
	Category    *string
	GoalAmount  *float64
	StartDate   *time.Time
	EndDate     *time.Time
	Image       []string
	Video       []string
	Document    []string
	Links       *[]string

	// Status is written in the same conditional update as the content.
	// Callers decide it through the lifecycle rules first.
	Status *Status
}

// Empty reports whether the update carries no changes.
func (u CampaignUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil &&
		u.GoalAmount == nil && u.StartDate == nil && u.EndDate == nil &&
		len(u.Image) == 0 && len(u.Video) == 0 && len(u.Document) == 0 &&
		u.Links == nil && u.Status == nil
}

// Apply copies the update onto c. Attachment kinds are only replaced
// when a non-empty list is supplied.
func (u CampaignUpdate) Apply(c *Campaign) {
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Category != nil {
		c.Category = *u.Category
	}
	if u.GoalAmount != nil {
		c.GoalAmount = *u.GoalAmount
	}
	if u.StartDate != nil {
		c.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		c.EndDate = *u.EndDate
	}
	if len(u.Image) > 0 {
		c.Attachments.Image = u.Image
	}
	if len(u.Video) > 0 {
		c.Attachments.Video = u.Video
	}
	if len(u.Document) > 0 {
		c.Attachments.Document = u.Document
	}
	if u.Links != nil {
		c.Links = *u.Links
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
}

// FieldValue returns the value of the named output field, used by
// in-process filtering and projections. ok is false for unknown names.
func (c *Campaign) FieldValue(name string) (v any, ok bool) {
	switch name {
	case "id":
		return c.ID, true
	case "slug":
		return c.Slug, true
	case "ownerId":
		return c.OwnerID, true
	case "title":
		return c.Title, true
	case "description":
		return c.Description, true
	case "category":
		return c.Category, true
	case "goalAmount":
		return c.GoalAmount, true
	case "raisedAmount":
		return c.RaisedAmount, true
	case "startDate":
		return c.StartDate, true
	case "endDate":
		return c.EndDate, true
	case "status":
		return string(c.Status), true
	case "releaseStatus":
		return string(c.ReleaseStatus), true
	case "attachments":
		return c.Attachments, true
	case "links":
		return c.Links, true
	case "createdAt":
		return c.CreatedAt, true
	case "updatedAt":
		return c.UpdatedAt, true
	}
	return nil, false
}
