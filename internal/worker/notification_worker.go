package worker

import (
	"github.com/spec-kit/campus-support/internal/events"
	"github.com/spec-kit/campus-support/internal/service"
)

// RegisterNotificationHandlers subscribes the webhook sender to status
// change events. A disabled sender subscribes nothing.
func RegisterNotificationHandlers(dispatcher events.Dispatcher, notifications *service.NotificationService) {
	if notifications == nil || !notifications.Enabled() {
		return
	}
	dispatcher.Subscribe(events.EventTicketStatusChanged, notifications.HandleStatusChange)
}
