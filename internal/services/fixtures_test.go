package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/database/testutil"
	"github.com/evanmori/neighborlink/internal/models"
	"github.com/evanmori/neighborlink/internal/realtime"
)

func seedUser(t *testing.T, db *gorm.DB, id, name string) models.User {
	t.Helper()

	user := models.User{
		BaseModel: models.BaseModel{ID: id},
		Name:      name,
		Email:     id + "@example.com",
		Password:  "hashed",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedRequestPost(t *testing.T, db *gorm.DB, ownerID, title string) models.Post {
	t.Helper()

	post := models.Post{
		Title:       title,
		Description: "needs a hand",
		Type:        models.PostTypeRequest,
		Status:      models.PostStatusOpen,
		CreatedByID: ownerID,
	}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func seedAssignment(t *testing.T, db *gorm.DB, postID, helperID, status string) models.Assignment {
	t.Helper()

	assignment := models.Assignment{
		PostID:   postID,
		HelperID: helperID,
		Status:   status,
		Message:  "happy to help",
	}
	require.NoError(t, db.Create(&assignment).Error)
	return assignment
}

// recordingSink captures dispatched events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Dispatch(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// recordingBroadcaster captures realtime pushes per recipient.
type recordingBroadcaster struct {
	mu     sync.Mutex
	pushes map[string][]realtime.Message
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{pushes: make(map[string][]realtime.Message)}
}

func (r *recordingBroadcaster) Push(userID string, message realtime.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes[userID] = append(r.pushes[userID], message)
}

func (r *recordingBroadcaster) forUser(userID string) []realtime.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Message(nil), r.pushes[userID]...)
}

func newAssignmentFixture(t *testing.T) (*gorm.DB, *AssignmentService, *recordingSink, *recordingBroadcaster) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	sink := &recordingSink{}
	push := newRecordingBroadcaster()
	svc, err := NewAssignmentService(db, sink, push)
	require.NoError(t, err)
	return db, svc, sink, push
}
