package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus tracks the campaign lifecycle.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignPublished CampaignStatus = "published"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignFailed    CampaignStatus = "failed"
)

// MediaFiles holds uploaded attachment references for a campaign.
type MediaFiles struct {
	Images []string `json:"images,omitempty"`
	Videos []string `json:"videos,omitempty"`
}

// Link is a URL attached to a campaign with scraped preview metadata.
type Link struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Campaign is one piece of source content the user wants adapted and
// published across platforms.
type Campaign struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Title           string
	OriginalContent string
	MediaFiles      *MediaFiles
	Links           []Link
	Status          CampaignStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Drafts is populated only by reads that explicitly join platform
	// content (GetWithDrafts).
	Drafts []ContentDraft
}
