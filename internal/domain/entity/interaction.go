package entity

import "time"

// Status is the lifecycle status of an interaction record.
// Valid transitions: GENERATED → {POSTED, FAILED, REJECTED}. APPROVED is a
// transient human decision, never persisted as a terminal state. No
// transition returns to GENERATED.
type Status string

const (
	StatusGenerated Status = "GENERATED"
	StatusApproved  Status = "APPROVED"
	StatusPosted    Status = "POSTED"
	StatusFailed    Status = "FAILED"
	StatusRejected  Status = "REJECTED"
)

// Terminal reports whether the status ends a comment's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusPosted || s == StatusFailed || s == StatusRejected
}

// Interaction is the durable record of one step in a comment's lifecycle.
// Records are append-only: a status change is written as a new Interaction
// with a fresh ID, never as an in-place edit of a prior record.
type Interaction struct {
	ID                string            `json:"id"`
	PostID            string            `json:"post_id"`
	CommentID         string            `json:"comment_id"`
	CommenterName     string            `json:"commenter_name"`
	CommentText       string            `json:"comment_text"`
	GeneratedResponse string            `json:"generated_response"`
	PostedResponse    string            `json:"posted_response,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
	Status            Status            `json:"status"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// SetMeta stores a metadata key/value pair, allocating the map on first use.
func (i *Interaction) SetMeta(key, value string) {
	if i.Metadata == nil {
		i.Metadata = make(map[string]string)
	}
	i.Metadata[key] = value
}

// PostResult is the outcome of posting a reply to the upstream API.
type PostResult struct {
	Success      bool
	ResponseID   string
	ErrorMessage string
	StatusCode   int
}
