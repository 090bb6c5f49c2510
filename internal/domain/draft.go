package domain

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus tracks the publish state of a ContentDraft.
type PostStatus string

const (
	PostDraft  PostStatus = "draft"
	PostPosted PostStatus = "posted"
	PostFailed PostStatus = "failed"
)

// Variation is one tone-specific rendition of the source content.
type Variation struct {
	Tone    string `json:"tone"`
	Content string `json:"content"`
}

// Iteration records one refinement step.
type Iteration struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Prompt    string    `json:"prompt"`
}

// ContentDraft is the per-platform generated content artifact of a
// campaign. Exactly one exists per (campaign, platform); regeneration
// replaces it wholesale.
//
// Variations are produced once by generation and never mutated in place;
// refinement overwrites SelectedContent and appends to IterationHistory.
type ContentDraft struct {
	ID               uuid.UUID
	CampaignID       uuid.UUID
	Platform         Platform
	Variations       []Variation
	SelectedContent  *string
	FinalContent     *string
	Status           PostStatus
	PostID           *string
	PostURL          *string
	IterationHistory []Iteration
	PostedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ContentToPublish picks the text to post: FinalContent, then
// SelectedContent, then the first variation. First non-empty wins.
// Returns "" when the draft carries no publishable text at all.
func (d *ContentDraft) ContentToPublish() string {
	if d.FinalContent != nil && *d.FinalContent != "" {
		return *d.FinalContent
	}
	if d.SelectedContent != nil && *d.SelectedContent != "" {
		return *d.SelectedContent
	}
	if len(d.Variations) > 0 {
		return d.Variations[0].Content
	}
	return ""
}

// MarkPosted records a successful publish.
func (d *ContentDraft) MarkPosted(postID, postURL string, now time.Time) {
	d.Status = PostPosted
	d.PostID = &postID
	d.PostURL = &postURL
	d.PostedAt = &now
}

// MarkFailed records a failed publish attempt, clearing any stale
// post identifiers from a previous attempt.
func (d *ContentDraft) MarkFailed() {
	d.Status = PostFailed
	d.PostID = nil
	d.PostURL = nil
	d.PostedAt = nil
}

// AppendIteration records a refinement result. History is append-only.
func (d *ContentDraft) AppendIteration(content, prompt string, now time.Time) {
	d.SelectedContent = &content
	d.IterationHistory = append(d.IterationHistory, Iteration{
		Timestamp: now,
		Content:   content,
		Prompt:    prompt,
	})
}

// PublishResult is the normalized outcome of one platform publish attempt.
// Failures are data, not errors, so a multi-platform publish can report
// partial success.
type PublishResult struct {
	Platform Platform `json:"platform"`
	Success  bool     `json:"success"`
	PostID   string   `json:"postId,omitempty"`
	PostURL  string   `json:"postUrl,omitempty"`
	Error    string   `json:"error,omitempty"`
}
