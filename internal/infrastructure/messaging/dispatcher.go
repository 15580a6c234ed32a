package messaging

import (
	"context"
	"log/slog"

	"github.com/exhale-hub/exhale-backend/internal/domain/notification"
)

// LogDispatcher implements notification.Dispatcher by logging the payload.
// Delivery channels (push, email) live in a separate service that consumes
// the same structured log stream; the engine's contract ends here.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a new logging dispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// SendNotification implements notification.Dispatcher.
func (d *LogDispatcher) SendNotification(ctx context.Context, n notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.logger.Info("notification dispatched",
		"user_id", n.UserID,
		"type", n.Type,
		"title", n.Title,
		"metadata", n.Metadata,
	)
	return nil
}
