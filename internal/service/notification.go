package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/repository"
)

// NotificationService handles in-app notifications. Creation is
// best-effort: callers fire it after their own write succeeds and a
// failed notification never fails the triggering request.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	userRepo  repository.UserRepository
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		userRepo:  userRepo,
	}
}

// Notify creates a notification for recipientUID about something
// actorUID did. Self-notifications are silently skipped.
func (s *NotificationService) Notify(ctx context.Context, recipientUID, actorUID, notifType string, referenceUID *string) error {
	if recipientUID == actorUID {
		return nil
	}

	actor, err := s.userRepo.GetByUID(ctx, actorUID)
	if err != nil {
		return err
	}

	n := &model.Notification{
		UID:          uuid.New().String(),
		Type:         notifType,
		Message:      buildMessage(actor.Username, notifType),
		ReferenceUID: referenceUID,
		ActorUID:     actorUID,
		CreatedAt:    time.Now().UTC(),
	}
	return s.notifRepo.Create(ctx, n, recipientUID)
}

// NotifyAsync is Notify on a best-effort footing: errors are logged,
// never returned. The triggering write has already committed by the
// time this runs.
func (s *NotificationService) NotifyAsync(ctx context.Context, recipientUID, actorUID, notifType string, referenceUID *string) {
	if err := s.Notify(ctx, recipientUID, actorUID, notifType, referenceUID); err != nil {
		logger.Get().Warn("notification create failed",
			zap.String("recipient_uid", recipientUID),
			zap.String("actor_uid", actorUID),
			zap.String("type", notifType),
			zap.Error(err))
	}
}

func buildMessage(actorUsername, notifType string) string {
	switch notifType {
	case model.NotificationTypeFollow:
		return actorUsername + " started following you"
	case model.NotificationTypeLike:
		return actorUsername + " liked your post"
	case model.NotificationTypeComment:
		return actorUsername + " commented on your post"
	case model.NotificationTypeReply:
		return actorUsername + " replied to your comment"
	case model.NotificationTypeMention:
		return actorUsername + " mentioned you"
	case model.NotificationTypeShare:
		return actorUsername + " shared your post"
	case model.NotificationTypeGroupRequest:
		return actorUsername + " requested to join your group"
	default:
		return "You have a new notification"
	}
}

// List returns a page of the user's notifications together with the
// unread badge count.
func (s *NotificationService) List(ctx context.Context, userUID string, unreadOnly bool, skip, limit int) (*model.NotificationListResponse, error) {
	skip, limit = normalizePage(skip, limit)
	notifications, err := s.notifRepo.ListByRecipient(ctx, userUID, unreadOnly, skip, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifRepo.UnreadCount(ctx, userUID)
	if err != nil {
		return nil, err
	}
	return &model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

// UnreadCount returns the number of unread notifications (for badge display).
func (s *NotificationService) UnreadCount(ctx context.Context, userUID string) (int, error) {
	return s.notifRepo.UnreadCount(ctx, userUID)
}

// MarkRead marks specific notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userUID string, uids []string) (int, error) {
	return s.notifRepo.MarkRead(ctx, userUID, uids)
}

// MarkAllRead marks all of the user's notifications as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userUID string) (int, error) {
	return s.notifRepo.MarkAllRead(ctx, userUID)
}

// MarkAllSeen clears the "new" state without touching read flags.
// Called when the user opens their notification tray.
func (s *NotificationService) MarkAllSeen(ctx context.Context, userUID string) (int, error) {
	return s.notifRepo.MarkAllSeen(ctx, userUID)
}
