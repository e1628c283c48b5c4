package models

import "time"

// Assignment lifecycle statuses. A rejected pending claim is hard-deleted
// rather than kept in a terminal state, so "rejected" never appears here.
const (
	AssignmentStatusPending    = "pending"
	AssignmentStatusApproved   = "approved"
	AssignmentStatusInProgress = "in_progress"
	AssignmentStatusCompleted  = "completed"
	AssignmentStatusCancelled  = "cancelled"
)

// AssignmentActiveStatuses is the set of statuses that are mutually exclusive
// per post: at most one assignment in any of these states may exist for a post.
// The database enforces this with a partial unique index on post_id.
var AssignmentActiveStatuses = []string{
	AssignmentStatusPending,
	AssignmentStatusApproved,
	AssignmentStatusInProgress,
}

// Assignment represents one helper's claim on a request post.
type Assignment struct {
	BaseModel

	PostID   string `gorm:"type:uuid;not null;index" json:"post_id"`
	HelperID string `gorm:"type:uuid;not null;index" json:"helper_id"`
	Status   string `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	// Message explains why the helper believes they can fulfil the request.
	Message string `gorm:"type:text;not null" json:"message"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Rating and Review may only be set once the assignment is completed.
	Rating *int   `json:"rating,omitempty"`
	Review string `gorm:"type:text" json:"review,omitempty"`

	Post   *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"post,omitempty"`
	Helper *User `gorm:"foreignKey:HelperID" json:"helper,omitempty"`
}

// IsTerminal reports whether the assignment has reached a final state.
func (a *Assignment) IsTerminal() bool {
	return a.Status == AssignmentStatusCompleted || a.Status == AssignmentStatusCancelled
}
