package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/database/testutil"
	"github.com/evanmori/neighborlink/internal/models"
	apperrors "github.com/evanmori/neighborlink/pkg/errors"
)

// seedApprovedAssignment walks a claim through approval so the chat can open.
func seedApprovedAssignment(t *testing.T, db *gorm.DB, svc *AssignmentService, ownerID, helperID string) (models.Post, *models.Assignment) {
	t.Helper()

	post := seedRequestPost(t, db, ownerID, "Water my garden")
	assignment, err := svc.Claim(context.Background(), ClaimInput{
		PostID: post.ID, HelperID: helperID, Message: "I live next door",
	})
	require.NoError(t, err)
	approved, err := svc.Decide(context.Background(), ownerID, assignment.ID, true)
	require.NoError(t, err)
	return post, approved
}

func newChatFixture(t *testing.T) (*gorm.DB, *AssignmentService, *ChatService, *recordingSink, *recordingBroadcaster) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	sink := &recordingSink{}
	push := newRecordingBroadcaster()

	assignments, err := NewAssignmentService(db, NopEventSink{}, nil)
	require.NoError(t, err)
	chats, err := NewChatService(db, sink, push)
	require.NoError(t, err)
	return db, assignments, chats, sink, push
}

func TestChatCreatedLazilyOnFirstFetch(t *testing.T) {
	db, assignments, chats, _, _ := newChatFixture(t)
	owner := seedUser(t, db, "owner-1", "Alice")
	helper := seedUser(t, db, "helper-1", "Bob")
	_, assignment := seedApprovedAssignment(t, db, assignments, owner.ID, helper.ID)

	var count int64
	require.NoError(t, db.Model(&models.Chat{}).Count(&count).Error)
	require.Zero(t, count)

	chat, err := chats.GetOrCreateChat(context.Background(), owner.ID, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, chat.OwnerID)
	require.Equal(t, helper.ID, chat.HelperID)
	require.Empty(t, chat.Messages)

	// A second fetch returns the same chat, not a duplicate.
	again, err := chats.GetOrCreateChat(context.Background(), helper.ID, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, chat.ID, again.ID)

	require.NoError(t, db.Model(&models.Chat{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestChatRefusesPendingAssignmentsAndStrangers(t *testing.T) {
	db, assignments, chats, _, _ := newChatFixture(t)
	owner := seedUser(t, db, "owner-1", "Alice")
	helper := seedUser(t, db, "helper-1", "Bob")
	stranger := seedUser(t, db, "user-3", "Mallory")

	post := seedRequestPost(t, db, owner.ID, "Walk my dog")
	assignment, err := assignments.Claim(context.Background(), ClaimInput{
		PostID: post.ID, HelperID: helper.ID, Message: "love dogs",
	})
	require.NoError(t, err)

	_, err = chats.GetOrCreateChat(context.Background(), owner.ID, assignment.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidOperation)

	_, err = assignments.Decide(context.Background(), owner.ID, assignment.ID, true)
	require.NoError(t, err)

	// Non-participants learn nothing, not even that the assignment exists.
	_, err = chats.GetOrCreateChat(context.Background(), stranger.ID, assignment.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSendMessageRoundTrip(t *testing.T) {
	db, assignments, chats, sink, push := newChatFixture(t)
	owner := seedUser(t, db, "owner-1", "Alice")
	helper := seedUser(t, db, "helper-1", "Bob")
	_, assignment := seedApprovedAssignment(t, db, assignments, owner.ID, helper.ID)

	message, err := chats.SendMessage(context.Background(), helper.ID, assignment.ID, SendMessageInput{
		Content: "On my way over",
	})
	require.NoError(t, err)
	require.Equal(t, models.MessageTypeText, message.MessageType)
	require.False(t, message.Read)

	// Both participants get the live push, nobody else does.
	require.Len(t, push.forUser(owner.ID), 1)
	require.Len(t, push.forUser(helper.ID), 1)
	require.Empty(t, push.forUser("someone-else"))

	// The durable notification targets only the counterpart.
	events := sink.all()
	require.Len(t, events, 1)
	msgEvent, ok := events[0].(NewMessageEvent)
	require.True(t, ok)
	require.Equal(t, owner.ID, msgEvent.RecipientID)

	// The owner fetching the chat marks the helper's message read.
	chat, err := chats.GetOrCreateChat(context.Background(), owner.ID, assignment.ID)
	require.NoError(t, err)
	require.Len(t, chat.Messages, 1)
	require.True(t, chat.Messages[0].Read)

	var stored models.ChatMessage
	require.NoError(t, db.First(&stored, "id = ?", message.ID).Error)
	require.True(t, stored.Read)
}

func TestSendMessageValidation(t *testing.T) {
	db, assignments, chats, _, _ := newChatFixture(t)
	owner := seedUser(t, db, "owner-1", "Alice")
	helper := seedUser(t, db, "helper-1", "Bob")
	_, assignment := seedApprovedAssignment(t, db, assignments, owner.ID, helper.ID)

	_, err := chats.SendMessage(context.Background(), helper.ID, assignment.ID, SendMessageInput{
		Content: "   ",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	// An attachment alone is enough; images are typed by extension.
	message, err := chats.SendMessage(context.Background(), helper.ID, assignment.ID, SendMessageInput{
		FileURL: "/uploads/fence.jpg", FileName: "fence.jpg",
	})
	require.NoError(t, err)
	require.Equal(t, models.MessageTypeImage, message.MessageType)

	other, err := chats.SendMessage(context.Background(), helper.ID, assignment.ID, SendMessageInput{
		FileURL: "/uploads/quote.pdf", FileName: "quote.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, models.MessageTypeFile, other.MessageType)
}

func TestChatClosesWhenAssignmentCancelled(t *testing.T) {
	db, assignments, chats, _, _ := newChatFixture(t)
	owner := seedUser(t, db, "owner-1", "Alice")
	helper := seedUser(t, db, "helper-1", "Bob")
	_, assignment := seedApprovedAssignment(t, db, assignments, owner.ID, helper.ID)

	_, err := chats.SendMessage(context.Background(), owner.ID, assignment.ID, SendMessageInput{
		Content: "When can you start?",
	})
	require.NoError(t, err)

	_, err = assignments.UpdateStatus(context.Background(), helper.ID, assignment.ID, models.AssignmentStatusCancelled)
	require.NoError(t, err)

	_, err = chats.SendMessage(context.Background(), owner.ID, assignment.ID, SendMessageInput{
		Content: "Hello?",
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidOperation)

	// History stays readable after the chat closes.
	chat, err := chats.GetOrCreateChat(context.Background(), helper.ID, assignment.ID)
	require.NoError(t, err)
	require.False(t, chat.IsActive)
	require.Len(t, chat.Messages, 1)
}

func TestChatListAndUnreadCount(t *testing.T) {
	db, assignments, chats, _, _ := newChatFixture(t)
	owner := seedUser(t, db, "owner-1", "Alice")
	helper := seedUser(t, db, "helper-1", "Bob")
	_, assignment := seedApprovedAssignment(t, db, assignments, owner.ID, helper.ID)

	for _, text := range []string{"first", "second"} {
		_, err := chats.SendMessage(context.Background(), helper.ID, assignment.ID, SendMessageInput{Content: text})
		require.NoError(t, err)
	}

	count, err := chats.UnreadCount(context.Background(), owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// The sender's own messages never count as unread for them.
	count, err = chats.UnreadCount(context.Background(), helper.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	list, err := chats.ListForUser(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, assignment.ID, list[0].AssignmentID)

	require.NoError(t, chats.MarkRead(context.Background(), owner.ID, assignment.ID))
	count, err = chats.UnreadCount(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}
