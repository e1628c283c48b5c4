package models

import "time"

// Chat message types. Image and file messages carry an attachment URL and may
// have empty content.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Chat is the private conversation between a post owner and the helper on one
// assignment. Exactly one chat exists per assignment and it is created lazily
// on first fetch or first message.
type Chat struct {
	BaseModel

	AssignmentID string `gorm:"type:uuid;not null;uniqueIndex" json:"assignment_id"`

	// The two participants: the post owner and the helper.
	OwnerID  string `gorm:"type:uuid;not null;index" json:"owner_id"`
	HelperID string `gorm:"type:uuid;not null;index" json:"helper_id"`

	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`

	Assignment *Assignment   `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE" json:"assignment,omitempty"`
	Owner      *User         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Helper     *User         `gorm:"foreignKey:HelperID" json:"helper,omitempty"`
	Messages   []ChatMessage `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// HasParticipant reports whether the supplied user is one of the two parties.
func (c *Chat) HasParticipant(userID string) bool {
	return userID != "" && (c.OwnerID == userID || c.HelperID == userID)
}

// OtherParticipant returns the counterpart of the supplied user, or empty if
// the user is not a participant.
func (c *Chat) OtherParticipant(userID string) string {
	switch userID {
	case c.OwnerID:
		return c.HelperID
	case c.HelperID:
		return c.OwnerID
	default:
		return ""
	}
}

// ChatMessage is a single entry in a chat, ordered by creation time.
type ChatMessage struct {
	BaseModel

	ChatID   string `gorm:"type:uuid;not null;index" json:"chat_id"`
	SenderID string `gorm:"type:uuid;not null;index" json:"sender_id"`

	Content     string `gorm:"type:text" json:"content"`
	MessageType string `gorm:"type:varchar(16);not null;default:'text'" json:"message_type"`
	FileURL     string `json:"file_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`

	// Read flips when the other participant views the chat, not on delivery.
	Read bool `gorm:"not null;default:false;index" json:"read"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
