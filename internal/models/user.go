package models

// User represents a neighborhood member who can post, claim, chat, and be notified.
type User struct {
	BaseModel

	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	Bio            string `gorm:"type:text" json:"bio,omitempty"`
	Location       string `json:"location,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}
