package worker

import (
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/service"
)

// StartNotificationWorker registers the realtime router and, when
// configured, the Kafka relay on the dispatcher.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, relay *events.KafkaRelay) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	relay.Register(dispatcher)
}
