package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	// Master events
	EventTypeAmcCreated      EventType = "amc.created"
	EventTypeAmcCodeAttached EventType = "amc.code_attached"

	// Staging events
	EventTypeStagingApproved EventType = "staging.approved"
	EventTypeStagingRejected EventType = "staging.rejected"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// AmcCreatedEvent is emitted when a new master AMC is promoted
type AmcCreatedEvent struct {
	BaseEvent
	AmcID        string `json:"amc_id"`
	AmcCode      string `json:"amc_code"`
	AmcShortName string `json:"amc_short_name"`
	AmcFullName  string `json:"amc_full_name"`
}

// AmcCodeAttachedEvent is emitted when a source code joins a master row
type AmcCodeAttachedEvent struct {
	BaseEvent
	AmcID   string `json:"amc_id"`
	Source  string `json:"source"`
	AmcCode string `json:"amc_code"`
}

// StagingReviewedEvent is emitted when a staged candidate is approved or
// rejected
type StagingReviewedEvent struct {
	BaseEvent
	StagingID  string  `json:"staging_id"`
	AmcID      string  `json:"amc_id,omitempty"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	ReviewedBy string  `json:"reviewed_by"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
