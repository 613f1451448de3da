package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/emrgen/template/internal/model"
)

const DefaultRevisionTopic = "template.revision.events"

type EventType string

const (
	EventCreated   EventType = "revision.created"
	EventUpdated   EventType = "revision.updated"
	EventScheduled EventType = "revision.scheduled"
	EventPublished EventType = "revision.published"
	EventArchived  EventType = "revision.archived"
	EventCancelled EventType = "revision.cancelled"
	EventDeleted   EventType = "revision.deleted"
)

// RevisionEvent describes a committed lifecycle transition.
type RevisionEvent struct {
	Type          EventType            `json:"type"`
	RevisionID    string               `json:"revisionId"`
	TemplateID    string               `json:"templateId"`
	VersionNumber int                  `json:"versionNumber"`
	Status        model.RevisionStatus `json:"status"`
	Actor         string               `json:"actor,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

func (e RevisionEvent) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// NewRevisionEvent snapshots a revision after a transition.
func NewRevisionEvent(typ EventType, rev *model.Revision, actor string, at time.Time) RevisionEvent {
	return RevisionEvent{
		Type:          typ,
		RevisionID:    rev.ID,
		TemplateID:    rev.TemplateID,
		VersionNumber: rev.VersionNumber,
		Status:        rev.Status,
		Actor:         actor,
		OccurredAt:    at.UTC(),
	}
}

type RevisionQueue interface {
	// Publish appends a lifecycle event to the queue.
	Publish(ctx context.Context, event RevisionEvent) error
	Close() error
}
