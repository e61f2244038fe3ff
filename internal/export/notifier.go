package export

import (
	"context"

	"github.com/nonprofit-tech/casevault/internal/core/events"
	exportDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/export"
)

// EventElevatedExportCreated is published when an elevated export link is
// created, so every subscribed channel can alert active admins inside the
// review window.
const EventElevatedExportCreated = events.EventTypeElevatedExportCreated

// EventNotifier publishes elevated-export notifications on the in-process
// event bus. Handlers run asynchronously; a slow or failing handler never
// blocks export creation.
type EventNotifier struct {
	bus *events.EventBus
}

func NewEventNotifier(bus *events.EventBus) *EventNotifier {
	return &EventNotifier{bus: bus}
}

func (n *EventNotifier) NotifyElevatedExport(ctx context.Context, link *exportDatamodel.ExportLink) error {
	event := events.NewElevatedExportCreatedEvent(link.ID, link.Kind, link.CreatorID, link.ClientCount, link.ExpiresAt)
	return n.bus.Publish(ctx, event)
}
