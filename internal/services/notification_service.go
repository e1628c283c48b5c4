package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/models"
	"github.com/evanmori/neighborlink/internal/realtime"
	apperrors "github.com/evanmori/neighborlink/pkg/errors"
	"github.com/evanmori/neighborlink/pkg/logger"
	"github.com/evanmori/neighborlink/pkg/metrics"
)

// listNotificationsLimit caps the notification feed. Older entries are only
// reachable after the newer ones are read or deleted.
const listNotificationsLimit = 50

// NotificationService persists per-recipient notifications from domain events
// and pushes them to live connections. It implements EventSink; Dispatch never
// returns an error because notification failures must not fail the operation
// that emitted the event.
type NotificationService struct {
	db   *gorm.DB
	push realtime.Broadcaster
	log  *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, push realtime.Broadcaster) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if push == nil {
		push = realtime.NopBroadcaster{}
	}
	return &NotificationService{db: db, push: push, log: logger.WithModule("notifications")}, nil
}

// Dispatch implements EventSink: it renders, persists, and pushes the
// notification for a domain event. Failures are logged and swallowed.
func (s *NotificationService) Dispatch(ctx context.Context, event Event) {
	ctx = ensureContext(ctx)

	notification, err := s.render(event)
	if err != nil {
		s.log.Warn("dropping unrenderable event", zap.Error(err))
		return
	}
	if notification == nil {
		return
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		s.log.Error("persist notification failed",
			zap.String("type", notification.Type),
			zap.String("recipient_id", notification.RecipientID),
			zap.Error(err))
		return
	}

	delivery := "queued"
	if s.connected(notification.RecipientID) {
		delivery = "pushed"
	}
	metrics.NotificationsDispatched.WithLabelValues(notification.Type, delivery).Inc()

	s.push.Push(notification.RecipientID, realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  realtime.EventNotificationCreated,
		Data:   notification,
	})
}

// render maps a domain event to the notification row it produces. The message
// text is rendered here, once, and stored verbatim.
func (s *NotificationService) render(event Event) (*models.Notification, error) {
	switch e := event.(type) {
	case AssignmentClaimedEvent:
		if e.Assignment == nil || e.Post == nil || e.Helper == nil {
			return nil, errors.New("claimed event missing entities")
		}
		return &models.Notification{
			RecipientID:  e.Post.CreatedByID,
			SenderID:     e.Helper.ID,
			Type:         e.NotificationType(),
			PostID:       strPtr(e.Post.ID),
			AssignmentID: strPtr(e.Assignment.ID),
			Message:      fmt.Sprintf("%s has claimed your request %q", e.Helper.Name, e.Post.Title),
		}, nil

	case AssignmentApprovedEvent:
		if e.Assignment == nil || e.Post == nil || e.Owner == nil {
			return nil, errors.New("approved event missing entities")
		}
		return &models.Notification{
			RecipientID:  e.Assignment.HelperID,
			SenderID:     e.Owner.ID,
			Type:         e.NotificationType(),
			PostID:       strPtr(e.Post.ID),
			AssignmentID: strPtr(e.Assignment.ID),
			Message:      fmt.Sprintf("Your claim for %q has been approved!", e.Post.Title),
		}, nil

	case AssignmentRejectedEvent:
		if e.Assignment == nil || e.Post == nil || e.Owner == nil {
			return nil, errors.New("rejected event missing entities")
		}
		// The assignment row is already gone; keep the notification without a
		// dangling reference.
		return &models.Notification{
			RecipientID: e.Assignment.HelperID,
			SenderID:    e.Owner.ID,
			Type:        e.NotificationType(),
			PostID:      strPtr(e.Post.ID),
			Message:     fmt.Sprintf("Your claim for %q was not approved.", e.Post.Title),
		}, nil

	case AssignmentStatusChangedEvent:
		if e.Assignment == nil || e.Post == nil || e.Helper == nil {
			return nil, errors.New("status event missing entities")
		}
		var verb string
		switch e.NewStatus {
		case models.AssignmentStatusInProgress:
			verb = "started working on"
		case models.AssignmentStatusCompleted:
			verb = "completed"
		case models.AssignmentStatusCancelled:
			verb = "cancelled"
		default:
			return nil, fmt.Errorf("status event for unexpected status %q", e.NewStatus)
		}
		data, _ := json.Marshal(map[string]string{
			"old_status": e.OldStatus,
			"new_status": e.NewStatus,
		})
		return &models.Notification{
			RecipientID:  e.Post.CreatedByID,
			SenderID:     e.Helper.ID,
			Type:         e.NotificationType(),
			PostID:       strPtr(e.Post.ID),
			AssignmentID: strPtr(e.Assignment.ID),
			Message:      fmt.Sprintf("%s has %s your request %q", e.Helper.Name, verb, e.Post.Title),
			Data:         datatypes.JSON(data),
		}, nil

	case NewCommentEvent:
		if e.Comment == nil || e.Post == nil || e.Author == nil {
			return nil, errors.New("comment event missing entities")
		}
		if e.Author.ID == e.Post.CreatedByID {
			// Commenting on your own post is not news.
			return nil, nil
		}
		return &models.Notification{
			RecipientID: e.Post.CreatedByID,
			SenderID:    e.Author.ID,
			Type:        e.NotificationType(),
			PostID:      strPtr(e.Post.ID),
			CommentID:   strPtr(e.Comment.ID),
			Message:     fmt.Sprintf("%s commented on your post %q", e.Author.Name, e.Post.Title),
		}, nil

	case NewMessageEvent:
		if e.Message == nil || e.Sender == nil || strings.TrimSpace(e.RecipientID) == "" {
			return nil, errors.New("message event missing entities")
		}
		return &models.Notification{
			RecipientID:  e.RecipientID,
			SenderID:     e.Sender.ID,
			Type:         e.NotificationType(),
			AssignmentID: strPtr(e.AssignmentID),
			Message:      fmt.Sprintf("You have a new message from %s", e.Sender.Name),
		}, nil

	default:
		return nil, fmt.Errorf("unhandled event type %T", event)
	}
}

// ListForUser returns the recipient's newest notifications, capped at 50,
// with sender, post, and assignment context preloaded for the feed.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("recipient_id = ?", userID).
		Preload("Sender").
		Preload("Post").
		Preload("Assignment").
		Order("created_at DESC").
		Limit(listNotificationsLimit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return rows, nil
}

// UnreadCount returns the number of unread notifications for the recipient.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

// MarkRead flips one notification to read. Only the recipient may do this; a
// notification belonging to someone else is reported as not found rather than
// forbidden, so ids cannot be probed.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Notification not found")
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if !notification.Read {
		if err := s.db.WithContext(ctx).Model(&notification).
			Update("read", true).Error; err != nil {
			return nil, fmt.Errorf("notification service: mark read: %w", err)
		}
		notification.Read = true
	}

	s.push.Push(userID, realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  realtime.EventNotificationUpdated,
		Data:   map[string]any{"id": notification.ID, "read": true},
	})
	return &notification, nil
}

// MarkAllRead marks every unread notification for the recipient as read.
// Calling it with nothing unread is a harmless no-op.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)

	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", userID, false).
		Update("read", true).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.push.Push(userID, realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  realtime.EventNotificationUpdated,
		Data:   map[string]any{"read_all": true},
	})
	return nil
}

// Delete removes a notification owned by the recipient.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("Notification not found")
	}
	return nil
}

// PurgeRead deletes read notifications older than the supplied cutoff and
// returns how many were removed. The maintenance job calls this on a schedule.
func (s *NotificationService) PurgeRead(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("read = ? AND created_at < ?", true, olderThan).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: purge read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) connected(userID string) bool {
	type connectedChecker interface {
		Connected(userID string) bool
	}
	if checker, ok := s.push.(connectedChecker); ok {
		return checker.Connected(userID)
	}
	return false
}
