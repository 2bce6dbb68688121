package document

import (
	"time"

	"github.com/docflow/docflow/server/internal/models"
)

// Type classifies a document. It is set at creation and never changes.
type Type string

const (
	TypeLetter   Type = "Letter"
	TypeMemo     Type = "Memo"
	TypeCircular Type = "Circular"
	TypeApproval Type = "Approval"
	TypeReport   Type = "Report"
)

// Priority is the business priority chosen by the sender.
type Priority string

const (
	PriorityNormal Priority = "Normal"
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
)

// Status is the current lifecycle state of a document.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusAccepted Status = "Accepted"
	StatusReviewed Status = "Reviewed"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"

	// StatusForwarded is only ever recorded on history entries of kind
	// EventForwarded; a document's Status is never Forwarded.
	StatusForwarded Status = "Forwarded"
)

// EventKind tags a history entry.
type EventKind string

const (
	EventStatusChanged EventKind = "status_changed"
	EventForwarded     EventKind = "forwarded"
)

// HistoryEntry is one immutable event in a document's audit trail.
type HistoryEntry struct {
	ID          string    `json:"id" bson:"id"`
	Kind        EventKind `json:"kind" bson:"kind"`
	Status      Status    `json:"status" bson:"status"`
	UpdatedBy   string    `json:"updatedBy" bson:"updatedBy"`
	Comment     string    `json:"comment" bson:"comment"`
	ForwardedTo string    `json:"forwardedTo,omitempty" bson:"forwardedTo,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// Document is the persistent document record routed between users.
//
// Sender, TrackingID, Title, Description, Type, Priority and CreatedAt are
// fixed at creation. Receiver and Status change only together with an append
// to History, and every successful write bumps Version.
type Document struct {
	ID          string         `json:"id" bson:"_id,omitempty"`
	TrackingID  string         `json:"trackingId" bson:"trackingId"`
	Title       string         `json:"title" bson:"title"`
	Description string         `json:"description" bson:"description"`
	Type        Type           `json:"type" bson:"type"`
	Priority    Priority       `json:"priority" bson:"priority"`
	Sender      string         `json:"sender" bson:"sender"`
	Receiver    string         `json:"receiver" bson:"receiver"`
	Status      Status         `json:"status" bson:"status"`
	History     []HistoryEntry `json:"history" bson:"history"`
	Version     int64          `json:"version" bson:"version"`
	CreatedAt   time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate it without touching the
// stored record.
func (d *Document) Clone() *Document {
	c := *d
	c.History = append([]HistoryEntry(nil), d.History...)
	return &c
}

// HasActor reports whether userID appears as updatedBy on any history entry.
func (d *Document) HasActor(userID string) bool {
	for _, h := range d.History {
		if h.UpdatedBy == userID {
			return true
		}
	}
	return false
}

// IsParticipant reports whether userID is the sender, the current receiver
// or a history actor.
func (d *Document) IsParticipant(userID string) bool {
	return d.Sender == userID || d.Receiver == userID || d.HasActor(userID)
}

// LastEvent returns the most recent history entry.
func (d *Document) LastEvent() HistoryEntry {
	return d.History[len(d.History)-1]
}

// HistoryView is a history entry with its actor resolved.
type HistoryView struct {
	HistoryEntry
	UpdatedBy   models.UserRef  `json:"updatedBy"`
	ForwardedTo *models.UserRef `json:"forwardedTo,omitempty"`
}

// View is a document with every actor reference resolved for display.
type View struct {
	ID          string         `json:"id"`
	TrackingID  string         `json:"trackingId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        Type           `json:"type"`
	Priority    Priority       `json:"priority"`
	Sender      models.UserRef `json:"sender"`
	Receiver    models.UserRef `json:"receiver"`
	Status      Status         `json:"status"`
	History     []HistoryView  `json:"history"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
