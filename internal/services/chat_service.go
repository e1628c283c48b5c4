package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/models"
	"github.com/evanmori/neighborlink/internal/realtime"
	apperrors "github.com/evanmori/neighborlink/pkg/errors"
	"github.com/evanmori/neighborlink/pkg/metrics"
)

// SendMessageInput carries one outgoing chat message. Either Content or
// FileURL must be present.
type SendMessageInput struct {
	Content  string
	FileURL  string
	FileName string
}

// ChatService manages the private per-assignment conversation between the post
// owner and the helper. Chats are created lazily: the first fetch or first
// message on an approved assignment brings the chat into existence.
type ChatService struct {
	db     *gorm.DB
	events EventSink
	push   realtime.Broadcaster
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, events EventSink, push realtime.Broadcaster) (*ChatService, error) {
	if db == nil {
		return nil, errors.New("chat service: db is required")
	}
	if events == nil {
		events = NopEventSink{}
	}
	if push == nil {
		push = realtime.NopBroadcaster{}
	}
	return &ChatService{db: db, events: events, push: push}, nil
}

// GetOrCreateChat returns the chat for an assignment, creating it on first
// access. Only the two participants may open it, and not before the owner has
// approved the claim. Fetching marks the counterpart's messages as read.
func (s *ChatService) GetOrCreateChat(ctx context.Context, userID, assignmentID string) (*models.Chat, error) {
	ctx = ensureContext(ctx)

	chat, err := s.ensureChat(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Where("chat_id = ?", chat.ID).
		Preload("Sender").
		Order("created_at ASC").
		Find(&chat.Messages).Error; err != nil {
		return nil, fmt.Errorf("chat service: load messages: %w", err)
	}

	if err := s.markRead(ctx, chat, userID); err != nil {
		return nil, err
	}
	for i := range chat.Messages {
		if chat.Messages[i].SenderID != userID {
			chat.Messages[i].Read = true
		}
	}

	return chat, nil
}

// SendMessage appends a message to the assignment's chat, creating the chat if
// this is the first exchange. Both participants receive a live push; the
// recipient additionally gets a durable notification so nothing is lost while
// they are offline.
func (s *ChatService) SendMessage(ctx context.Context, userID, assignmentID string, input SendMessageInput) (*models.ChatMessage, error) {
	ctx = ensureContext(ctx)

	input.Content = strings.TrimSpace(input.Content)
	input.FileURL = strings.TrimSpace(input.FileURL)
	if input.Content == "" && input.FileURL == "" {
		return nil, apperrors.NewValidation("A message needs text or an attachment")
	}

	chat, err := s.ensureChat(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	if !chat.IsActive {
		return nil, apperrors.NewInvalidOperation("This conversation is closed")
	}

	message := models.ChatMessage{
		ChatID:      chat.ID,
		SenderID:    userID,
		Content:     input.Content,
		MessageType: messageTypeFor(input),
		FileURL:     input.FileURL,
		FileName:    strings.TrimSpace(input.FileName),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := tx.Model(&models.Chat{}).
			Where("id = ?", chat.ID).
			Update("last_message_at", time.Now().UTC()).Error; err != nil {
			return fmt.Errorf("touch chat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat service: send message: %w", err)
	}
	metrics.ChatMessages.WithLabelValues(message.MessageType).Inc()

	var sender models.User
	if err := s.db.WithContext(ctx).First(&sender, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("chat service: load sender: %w", err)
	}
	message.Sender = &sender

	// Scoped delivery: exactly the two participants, nobody else.
	payload := realtime.Message{
		Stream: realtime.StreamChat,
		Event:  realtime.EventChatMessage,
		Data: map[string]any{
			"assignment_id": assignmentID,
			"chat_id":       chat.ID,
			"message":       &message,
		},
	}
	s.push.Push(chat.OwnerID, payload)
	s.push.Push(chat.HelperID, payload)

	s.events.Dispatch(ctx, NewMessageEvent{
		Message:      &message,
		Sender:       &sender,
		AssignmentID: assignmentID,
		RecipientID:  chat.OtherParticipant(userID),
	})

	return &message, nil
}

// MarkRead marks every message from the other participant as read.
func (s *ChatService) MarkRead(ctx context.Context, userID, assignmentID string) error {
	ctx = ensureContext(ctx)

	chat, err := s.ensureChat(ctx, userID, assignmentID)
	if err != nil {
		return err
	}
	return s.markRead(ctx, chat, userID)
}

// ListForUser returns the user's chats ordered by latest activity, each with
// its unread count for badge rendering.
func (s *ChatService) ListForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	ctx = ensureContext(ctx)

	var chats []models.Chat
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? OR helper_id = ?", userID, userID).
		Preload("Owner").
		Preload("Helper").
		Preload("Assignment").
		Preload("Assignment.Post").
		Order("last_message_at DESC").
		Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("chat service: list chats: %w", err)
	}
	return chats, nil
}

// UnreadCount returns how many messages addressed to the user are unread
// across all their chats.
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Joins("JOIN chats ON chats.id = chat_messages.chat_id").
		Where("(chats.owner_id = ? OR chats.helper_id = ?)", userID, userID).
		Where("chat_messages.sender_id <> ? AND chat_messages.read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("chat service: unread count: %w", err)
	}
	return count, nil
}

// ensureChat loads the chat for an assignment, creating it when missing. It
// verifies the caller is a participant and that the claim has been approved.
func (s *ChatService) ensureChat(ctx context.Context, userID, assignmentID string) (*models.Chat, error) {
	var assignment models.Assignment
	if err := s.db.WithContext(ctx).
		Preload("Post").
		Preload("Post.CreatedBy").
		Preload("Helper").
		First(&assignment, "id = ?", assignmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Assignment not found")
		}
		return nil, fmt.Errorf("chat service: load assignment: %w", err)
	}
	if assignment.Post == nil {
		return nil, fmt.Errorf("chat service: assignment %s has no post", assignment.ID)
	}

	ownerID := assignment.Post.CreatedByID
	if userID != ownerID && userID != assignment.HelperID {
		return nil, apperrors.NewNotFound("Assignment not found")
	}
	if assignment.Status == models.AssignmentStatusPending {
		return nil, apperrors.NewInvalidOperation("Chat opens once the claim is approved")
	}

	var chat models.Chat
	err := s.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		First(&chat).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		chat = models.Chat{
			AssignmentID:  assignmentID,
			OwnerID:       ownerID,
			HelperID:      assignment.HelperID,
			LastMessageAt: time.Now().UTC(),
			IsActive:      true,
		}
		if createErr := s.db.WithContext(ctx).Create(&chat).Error; createErr != nil {
			// A concurrent first fetch may have won the race on the unique
			// assignment_id index; fall back to reading theirs.
			if isUniqueConstraintError(createErr) {
				if err := s.db.WithContext(ctx).
					Where("assignment_id = ?", assignmentID).
					First(&chat).Error; err != nil {
					return nil, fmt.Errorf("chat service: reload chat: %w", err)
				}
			} else {
				return nil, fmt.Errorf("chat service: create chat: %w", createErr)
			}
		}
	default:
		return nil, fmt.Errorf("chat service: load chat: %w", err)
	}

	if chat.IsActive && assignment.Status == models.AssignmentStatusCancelled {
		if err := s.db.WithContext(ctx).Model(&models.Chat{}).
			Where("id = ?", chat.ID).
			Update("is_active", false).Error; err != nil {
			return nil, fmt.Errorf("chat service: close chat: %w", err)
		}
		chat.IsActive = false
	}

	// Hand back both identities so a single fetch is enough for the caller to
	// name the other participant.
	chat.Assignment = &assignment
	chat.Owner = assignment.Post.CreatedBy
	chat.Helper = assignment.Helper
	return &chat, nil
}

func (s *ChatService) markRead(ctx context.Context, chat *models.Chat, userID string) error {
	if err := s.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("chat_id = ? AND sender_id <> ? AND read = ?", chat.ID, userID, false).
		Update("read", true).Error; err != nil {
		return fmt.Errorf("chat service: mark read: %w", err)
	}
	return nil
}

// messageTypeFor derives the stored message type from the payload: image
// attachments by extension, any other attachment as a file, plain text otherwise.
func messageTypeFor(input SendMessageInput) string {
	if input.FileURL == "" {
		return models.MessageTypeText
	}

	lower := strings.ToLower(input.FileURL)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return models.MessageTypeImage
		}
	}
	return models.MessageTypeFile
}
