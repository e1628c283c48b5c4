package realtime

// Named realtime streams pushed to connected clients.
const (
	StreamNotifications = "notifications"
	StreamChat          = "chat"
	StreamPresence      = "presence"
)

// Server-pushed event names.
const (
	EventChatMessage         = "chat.message"
	EventNotificationCreated = "notification.created"
	EventNotificationUpdated = "notification.updated"
	EventAssignmentStatus    = "assignment.status"
)

// Broadcaster is the narrow capability handed to domain services. Services
// push to a recipient by user id and never see the connection registry itself.
// Delivery is best effort: pushing to a user with no live connection is a no-op.
type Broadcaster interface {
	Push(userID string, message Message)
}

// NopBroadcaster discards every push. Useful in tests and when the realtime
// layer is disabled.
type NopBroadcaster struct{}

// Push implements Broadcaster.
func (NopBroadcaster) Push(string, Message) {}
