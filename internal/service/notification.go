// Package service contains application services.
package service

import (
	"context"
	"log/slog"

	"github.com/blipee-dev/agentcore/internal/port/notifier"
)

// NotificationService fans tenant-facing alerts out to every configured
// sink. Delivery is best effort: orchestration never blocks on a webhook.
type NotificationService struct {
	sinks   []notifier.Notifier
	sources map[string]bool
}

// NewNotificationService creates a NotificationService. sources selects
// which notification sources are delivered (see the notifier.Source*
// constants); nil or empty delivers everything.
func NewNotificationService(sinks []notifier.Notifier, sources []string) *NotificationService {
	enabled := make(map[string]bool, len(sources))
	for _, src := range sources {
		enabled[src] = true
	}
	return &NotificationService{sinks: sinks, sources: enabled}
}

// Notify delivers a notification to every sink. A failing sink is logged
// and skipped; the rest still receive the notification.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if len(s.sources) > 0 && !s.sources[n.Source] {
		return
	}

	for _, sink := range s.sinks {
		if err := sink.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"provider", sink.Name(),
				"source", n.Source,
				"title", n.Title,
				"error", err,
			)
			continue
		}
		slog.Debug("notification sent", "provider", sink.Name(), "source", n.Source)
	}
}

// NotifierCount returns the number of configured sinks.
func (s *NotificationService) NotifierCount() int {
	return len(s.sinks)
}
