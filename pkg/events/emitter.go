// Package events handles event emission for AMC master lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/aster/pkg/tracing"

	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes AMC lifecycle events for downstream consumers
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitAmcCreated emits an amc.created event
func (e *Emitter) EmitAmcCreated(ctx context.Context, master *models.AmcMaster) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAmcCreated")
	defer span.End()

	payload := AmcCreatedEvent{
		BaseEvent:    NewBaseEvent(EventTypeAmcCreated),
		AmcID:        master.AmcID,
		AmcCode:      master.AmcCode,
		AmcShortName: master.AmcShortName,
		AmcFullName:  master.AmcFullName,
	}
	data, _ := json.Marshal(payload)

	event := &kafka.AmcEvent{
		EventType: string(EventTypeAmcCreated),
		AmcID:     master.AmcID,
		AmcCode:   master.AmcCode,
		Data:      data,
	}

	if err := e.producer.PublishAmcEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit amc.created event")
		return err
	}

	return nil
}

// EmitAmcCodeAttached emits an amc.code_attached event
func (e *Emitter) EmitAmcCodeAttached(ctx context.Context, amcID string, source models.Source, code string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAmcCodeAttached")
	defer span.End()

	payload := AmcCodeAttachedEvent{
		BaseEvent: NewBaseEvent(EventTypeAmcCodeAttached),
		AmcID:     amcID,
		Source:    string(source),
		AmcCode:   code,
	}
	data, _ := json.Marshal(payload)

	event := &kafka.AmcEvent{
		EventType: string(EventTypeAmcCodeAttached),
		AmcID:     amcID,
		AmcCode:   code,
		Source:    string(source),
		Data:      data,
	}

	if err := e.producer.PublishAmcEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit amc.code_attached event")
		return err
	}

	return nil
}

// EmitStagingReviewed emits a staging.approved or staging.rejected event
func (e *Emitter) EmitStagingReviewed(ctx context.Context, candidate *models.StagingCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitStagingReviewed")
	defer span.End()

	eventType := EventTypeStagingApproved
	if candidate.Status == models.StagingRejected {
		eventType = EventTypeStagingRejected
	}

	amcID := ""
	if candidate.SuggestedAmcID != nil {
		amcID = *candidate.SuggestedAmcID
	}
	reviewedBy := ""
	if candidate.ReviewedBy != nil {
		reviewedBy = *candidate.ReviewedBy
	}

	payload := StagingReviewedEvent{
		BaseEvent:  NewBaseEvent(eventType),
		StagingID:  candidate.ID,
		AmcID:      amcID,
		Source:     string(candidate.SourceTable),
		Confidence: candidate.MatchConfidence,
		ReviewedBy: reviewedBy,
	}
	data, _ := json.Marshal(payload)

	event := &kafka.AmcEvent{
		EventType: string(eventType),
		AmcID:     amcID,
		Source:    string(candidate.SourceTable),
		Data:      data,
	}

	if err := e.producer.PublishAmcEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"staging_id": candidate.ID}).Error("Failed to emit staging review event")
		return err
	}

	return nil
}
