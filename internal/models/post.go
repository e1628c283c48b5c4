package models

// Post types distinguish who is asking for help from who is offering it.
// Only requests can be claimed.
const (
	PostTypeRequest = "request"
	PostTypeOffer   = "offer"
)

// Post status mirrors the active assignment on the post. The assignment
// lifecycle is the only writer of this field.
const (
	PostStatusOpen       = "open"
	PostStatusInProgress = "in_progress"
	PostStatusCompleted  = "completed"
	PostStatusCancelled  = "cancelled"
)

// Post represents a request for help or an offer of help on the board.
type Post struct {
	BaseModel

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`
	Type        string `gorm:"type:varchar(16);not null;index" json:"type"`
	Status      string `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	Category    string `gorm:"type:varchar(64);default:'general'" json:"category"`
	Location    string `json:"location,omitempty"`
	Image       string `json:"image,omitempty"`

	CreatedByID string `gorm:"type:uuid;not null;index" json:"created_by_id"`
	CreatedBy   *User  `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}
