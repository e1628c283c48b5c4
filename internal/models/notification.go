package models

import "gorm.io/datatypes"

// Notification types form a closed enum. Every type except NotificationNewMessage
// references the post the event happened on.
const (
	NotificationAssignmentClaimed       = "assignment_claimed"
	NotificationAssignmentApproved      = "assignment_approved"
	NotificationAssignmentRejected      = "assignment_rejected"
	NotificationAssignmentStatusChanged = "assignment_status_changed"
	NotificationAssignmentCompleted     = "assignment_completed"
	NotificationAssignmentCancelled     = "assignment_cancelled"
	NotificationNewComment              = "new_comment"
	NotificationNewMessage              = "new_message"
)

// Notification is a durable per-recipient record of a lifecycle or chat event.
// The message text is rendered once at creation time and never recomputed, so
// later edits to the referenced post do not rewrite history.
type Notification struct {
	BaseModel

	RecipientID string `gorm:"type:uuid;not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	SenderID    string `gorm:"type:uuid;not null" json:"sender_id"`
	Type        string `gorm:"type:varchar(48);not null;index" json:"type"`

	PostID       *string `gorm:"type:uuid;index" json:"post_id,omitempty"`
	AssignmentID *string `gorm:"type:uuid;index" json:"assignment_id,omitempty"`
	CommentID    *string `gorm:"type:uuid" json:"comment_id,omitempty"`

	Message string         `gorm:"type:text;not null" json:"message"`
	Read    bool           `gorm:"not null;default:false;index:idx_notifications_recipient_read" json:"read"`
	Data    datatypes.JSON `json:"data,omitempty"`

	// References go null, not away, when the referenced row is deleted: the
	// notification itself is the durable record.
	Sender     *User       `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Post       *Post       `gorm:"foreignKey:PostID;constraint:OnDelete:SET NULL" json:"post,omitempty"`
	Assignment *Assignment `gorm:"foreignKey:AssignmentID;constraint:OnDelete:SET NULL" json:"assignment,omitempty"`
	Comment    *Comment    `gorm:"foreignKey:CommentID;constraint:OnDelete:SET NULL" json:"comment,omitempty"`
}
