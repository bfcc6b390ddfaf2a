package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/realtime"
)

// NotificationService routes dispatched lifecycle events to the realtime bus.
type NotificationService struct {
	dispatcher events.Dispatcher
	bus        realtime.Bus
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, bus realtime.Bus, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		bus:        bus,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventStatusUpdate, n.handleStatusUpdate)
	n.dispatcher.Subscribe(events.EventStaffAssignment, n.handleStaffAssignment)
	n.dispatcher.Subscribe(events.EventEscalation, n.handleEscalation)
	n.dispatcher.Subscribe(events.EventDeadlineReminder, n.handleDeadlineReminder)
}

func (n *NotificationService) handleStatusUpdate(ctx context.Context, event events.Event) error {
	n.logger.Debug("StatusUpdate", zap.String("complaint_id", event.ComplaintID), zap.Any("data", event.Envelope.Data))
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleStaffAssignment(ctx context.Context, event events.Event) error {
	n.logger.Debug("StaffAssignment", zap.String("complaint_id", event.ComplaintID), zap.Any("data", event.Envelope.Data))
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleEscalation(ctx context.Context, event events.Event) error {
	n.logger.Info("Escalation", zap.String("complaint_id", event.ComplaintID), zap.Any("data", event.Envelope.Data))
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleDeadlineReminder(ctx context.Context, event events.Event) error {
	n.logger.Debug("DeadlineReminder", zap.String("complaint_id", event.ComplaintID), zap.Any("data", event.Envelope.Data))
	return n.fanOut(ctx, event)
}

// fanOut hands one delivery per target to the bus. Every target is tried;
// the joined error goes back to the dispatcher, which only logs it.
func (n *NotificationService) fanOut(ctx context.Context, event events.Event) error {
	if n.bus == nil {
		return nil
	}
	var errs []error
	for _, target := range event.Targets {
		if err := n.bus.Deliver(ctx, realtime.Delivery{Envelope: event.Envelope, Target: target}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
