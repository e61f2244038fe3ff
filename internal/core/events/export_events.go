package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeElevatedExportCreated = "export.elevated_created"
)

type ElevatedExportCreatedEvent struct {
	BaseEvent
	LinkID      string    `json:"link_id"`
	Kind        string    `json:"kind"`
	CreatorID   int64     `json:"creator_id"`
	ClientCount int       `json:"client_count"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func NewElevatedExportCreatedEvent(linkID, kind string, creatorID int64, clientCount int, expiresAt time.Time) *ElevatedExportCreatedEvent {
	return &ElevatedExportCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeElevatedExportCreated,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"link_id":      linkID,
				"kind":         kind,
				"creator_id":   creatorID,
				"client_count": clientCount,
				"expires_at":   expiresAt,
			},
		},
		LinkID:      linkID,
		Kind:        kind,
		CreatorID:   creatorID,
		ClientCount: clientCount,
		ExpiresAt:   expiresAt,
	}
}
