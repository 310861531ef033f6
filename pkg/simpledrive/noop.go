package simpledrive

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ItemCreated does nothing and returns nil
func (n *NoopEventSink) ItemCreated(ctx context.Context, item *Item) error {
	return nil
}

// ItemUpdated does nothing and returns nil
func (n *NoopEventSink) ItemUpdated(ctx context.Context, item *Item) error {
	return nil
}

// ItemDeleted does nothing and returns nil
func (n *NoopEventSink) ItemDeleted(ctx context.Context, itemID uuid.UUID) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action.
// Useful for development and debugging.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ItemCreated logs the item creation event
func (l *LoggingEventSink) ItemCreated(ctx context.Context, item *Item) error {
	l.logger.InfoContext(ctx, "Item created", "item_id", item.ID, "name", item.Name, "type", item.Type, "owner", item.Owner)
	return nil
}

// ItemUpdated logs the item update event
func (l *LoggingEventSink) ItemUpdated(ctx context.Context, item *Item) error {
	l.logger.InfoContext(ctx, "Item updated", "item_id", item.ID, "version", item.Version, "modified_by", item.LastModifiedBy)
	return nil
}

// ItemDeleted logs the item deletion event
func (l *LoggingEventSink) ItemDeleted(ctx context.Context, itemID uuid.UUID) error {
	l.logger.InfoContext(ctx, "Item deleted", "item_id", itemID)
	return nil
}
