package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/approval"
	"github.com/garyjia/erp-approvals/internal/domain/entity"
	"github.com/garyjia/erp-approvals/internal/domain/event"
)

// NotificationService turns approval events into chat messages
type NotificationService interface {
	// HandleEvent is subscribed to the approval events on the dispatcher
	HandleEvent(ctx context.Context, evt *event.Event) error

	// ListForRequest returns the delivery records of a request
	ListForRequest(ctx context.Context, requestID string) ([]*entity.Notification, error)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	memberships      port.MembershipRepository
	queue            port.DeliveryQueue
	logger           Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	memberships port.MembershipRepository,
	queue port.DeliveryQueue,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		memberships:      memberships,
		queue:            queue,
		logger:           logger,
	}
}

// HandleEvent records one notification per recipient and queues it for delivery.
// A failed enqueue is recorded on the notification and does not fail the event.
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}

	recipients, err := s.recipients(ctx, evt)
	if err != nil {
		s.logger.Error("Failed to resolve recipients", "error", err, "event_type", evt.Type, "request_id", evt.RequestID)
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	message := buildMessage(evt)
	for _, recipient := range recipients {
		notification := &entity.Notification{
			RequestID: evt.RequestID,
			EventType: evt.Type.String(),
			Recipient: recipient,
			Message:   message,
			Status:    entity.NotificationStatusPending,
			CreatedAt: time.Now(),
		}

		if err := s.notificationRepo.Create(ctx, notification); err != nil {
			s.logger.Error("Failed to record notification", "error", err, "request_id", evt.RequestID, "recipient", recipient)
			return approval.WrapPersistence("create notification", err)
		}

		err := s.queue.Enqueue(ctx, port.Delivery{
			NotificationID: notification.ID,
			Recipient:      recipient,
			Text:           message,
		})
		if err != nil {
			s.logger.Error("Failed to queue notification", "error", err, "notification_id", notification.ID)
			if markErr := s.notificationRepo.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
				s.logger.Error("Failed to mark notification failed", "error", markErr, "notification_id", notification.ID)
			}
			continue
		}
	}

	s.logger.Info("Notifications queued", "event_type", evt.Type, "request_id", evt.RequestID, "recipients", len(recipients))
	return nil
}

// ListForRequest returns the delivery records of a request
func (s *notificationServiceImpl) ListForRequest(ctx context.Context, requestID string) ([]*entity.Notification, error) {
	notifications, err := s.notificationRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, approval.WrapPersistence("list notifications", err)
	}
	return notifications, nil
}

// recipients picks approvers for open requests and the requester for decisions.
// The actor is never notified about their own action.
func (s *notificationServiceImpl) recipients(ctx context.Context, evt *event.Event) ([]string, error) {
	var candidates []string

	switch evt.Type {
	case event.TypeApprovalRequested, event.TypeApprovalReopened, event.TypeApprovalCancelled:
		if defaultApprover := evt.GetPayloadString("default_approver_id"); defaultApprover != "" {
			candidates = append(candidates, defaultApprover)
		}
		for _, groupID := range evt.GetPayloadStrings("approver_group_ids") {
			members, err := s.memberships.ListMembers(ctx, evt.CompanyID, groupID)
			if err != nil {
				return nil, fmt.Errorf("list members of %s: %w", groupID, err)
			}
			candidates = append(candidates, members...)
		}
	case event.TypeApprovalApproved, event.TypeApprovalRejected:
		candidates = append(candidates, evt.GetPayloadString("requested_by"))
	default:
		return nil, nil
	}

	seen := make(map[string]struct{}, len(candidates))
	recipients := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == "" || candidate == evt.ActorID {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		recipients = append(recipients, candidate)
	}

	return recipients, nil
}

func buildMessage(evt *event.Event) string {
	subject := fmt.Sprintf("%s %s", evt.DocumentType, evt.DocumentID)
	amount := evt.GetPayloadString("amount")
	comment := evt.GetPayloadString("comment")

	var msg string
	switch evt.Type {
	case event.TypeApprovalRequested:
		msg = fmt.Sprintf("Approval requested: %s (amount %s) is waiting for your sign-off.", subject, amount)
	case event.TypeApprovalReopened:
		msg = fmt.Sprintf("Approval reopened: %s (amount %s) is waiting for your sign-off again.", subject, amount)
	case event.TypeApprovalCancelled:
		msg = fmt.Sprintf("Approval withdrawn: the request for %s was cancelled by the requester.", subject)
	case event.TypeApprovalApproved:
		msg = fmt.Sprintf("Approved: your request for %s was approved by %s.", subject, evt.ActorID)
	case event.TypeApprovalRejected:
		msg = fmt.Sprintf("Rejected: your request for %s was rejected by %s.", subject, evt.ActorID)
	default:
		msg = fmt.Sprintf("%s: %s", evt.Type, subject)
	}

	if comment != "" {
		msg += "\nComment: " + comment
	}
	return msg
}
