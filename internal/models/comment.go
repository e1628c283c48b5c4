package models

// Comment is a public note on a post.
type Comment struct {
	BaseModel

	Text string `gorm:"type:text;not null" json:"text"`

	PostID      string `gorm:"type:uuid;not null;index" json:"post_id"`
	CreatedByID string `gorm:"type:uuid;not null;index" json:"created_by_id"`

	Post      *Post `gorm:"foreignKey:PostID" json:"post,omitempty"`
	CreatedBy *User `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}
