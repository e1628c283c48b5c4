package services

import (
	"context"

	"github.com/evanmori/neighborlink/internal/models"
)

// Domain events emitted by the assignment lifecycle and the chat. Each event
// type carries exactly the entities its notification needs, so rendering never
// reaches back into live data. The lifecycle emits events and moves on;
// whatever consumes them must never fail the emitting operation.

// Event is implemented by every domain event.
type Event interface {
	// NotificationType names the notification this event produces.
	NotificationType() string
}

// EventSink consumes domain events. Implementations must swallow their own
// failures: event handling is best-effort auxiliary work, not part of the
// transaction that produced the event.
type EventSink interface {
	Dispatch(ctx context.Context, event Event)
}

// NopEventSink drops all events.
type NopEventSink struct{}

// Dispatch implements EventSink.
func (NopEventSink) Dispatch(context.Context, Event) {}

// AssignmentClaimedEvent fires when a helper claims an open request.
// Recipient: the post owner.
type AssignmentClaimedEvent struct {
	Assignment *models.Assignment
	Post       *models.Post
	Helper     *models.User
}

func (AssignmentClaimedEvent) NotificationType() string { return models.NotificationAssignmentClaimed }

// AssignmentApprovedEvent fires when the post owner approves a pending claim.
// Recipient: the helper.
type AssignmentApprovedEvent struct {
	Assignment *models.Assignment
	Post       *models.Post
	Owner      *models.User
}

func (AssignmentApprovedEvent) NotificationType() string {
	return models.NotificationAssignmentApproved
}

// AssignmentRejectedEvent fires when the post owner rejects a pending claim.
// The assignment is already deleted when this event is observed; the copy here
// is the last record of it. Recipient: the helper.
type AssignmentRejectedEvent struct {
	Assignment *models.Assignment
	Post       *models.Post
	Owner      *models.User
}

func (AssignmentRejectedEvent) NotificationType() string {
	return models.NotificationAssignmentRejected
}

// AssignmentStatusChangedEvent fires on every successful lifecycle transition
// past approval. Recipient: the post owner.
type AssignmentStatusChangedEvent struct {
	Assignment *models.Assignment
	Post       *models.Post
	Helper     *models.User
	OldStatus  string
	NewStatus  string
}

func (e AssignmentStatusChangedEvent) NotificationType() string {
	switch e.NewStatus {
	case models.AssignmentStatusCompleted:
		return models.NotificationAssignmentCompleted
	case models.AssignmentStatusCancelled:
		return models.NotificationAssignmentCancelled
	default:
		return models.NotificationAssignmentStatusChanged
	}
}

// NewCommentEvent fires when someone comments on another user's post.
// Recipient: the post owner.
type NewCommentEvent struct {
	Comment *models.Comment
	Post    *models.Post
	Author  *models.User
}

func (NewCommentEvent) NotificationType() string { return models.NotificationNewComment }

// NewMessageEvent fires for every chat message, regardless of live delivery,
// so unread badges stay consistent. Recipient: the other chat participant.
type NewMessageEvent struct {
	Message      *models.ChatMessage
	Sender       *models.User
	AssignmentID string
	RecipientID  string
}

func (NewMessageEvent) NotificationType() string { return models.NotificationNewMessage }
