package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/models"
	apperrors "github.com/evanmori/neighborlink/pkg/errors"
)

// CommentService manages public comments on posts.
type CommentService struct {
	db     *gorm.DB
	events EventSink
}

// NewCommentService constructs a CommentService.
func NewCommentService(db *gorm.DB, events EventSink) (*CommentService, error) {
	if db == nil {
		return nil, errors.New("comment service: db is required")
	}
	if events == nil {
		events = NopEventSink{}
	}
	return &CommentService{db: db, events: events}, nil
}

// Create adds a comment to a post and notifies the post owner, unless the
// owner is commenting on their own post.
func (s *CommentService) Create(ctx context.Context, userID, postID, text string) (*models.Comment, error) {
	ctx = ensureContext(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidation("Comment text is required")
	}

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Post not found")
		}
		return nil, fmt.Errorf("comment service: load post: %w", err)
	}

	comment := models.Comment{
		Text:        text,
		PostID:      postID,
		CreatedByID: userID,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("comment service: create comment: %w", err)
	}

	var author models.User
	if err := s.db.WithContext(ctx).First(&author, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("comment service: load author: %w", err)
	}
	comment.CreatedBy = &author

	s.events.Dispatch(ctx, NewCommentEvent{Comment: &comment, Post: &post, Author: &author})
	return &comment, nil
}

// ListForPost returns a post's comments, oldest first.
func (s *CommentService) ListForPost(ctx context.Context, postID string) ([]models.Comment, error) {
	ctx = ensureContext(ctx)

	var exists int64
	if err := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("comment service: check post: %w", err)
	}
	if exists == 0 {
		return nil, apperrors.NewNotFound("Post not found")
	}

	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Preload("CreatedBy").
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("comment service: list comments: %w", err)
	}
	return comments, nil
}

// Delete removes a comment. The comment author and the post owner may both
// delete it.
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	ctx = ensureContext(ctx)

	var comment models.Comment
	if err := s.db.WithContext(ctx).
		Preload("Post").
		First(&comment, "id = ?", commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("Comment not found")
		}
		return fmt.Errorf("comment service: load comment: %w", err)
	}

	allowed := comment.CreatedByID == userID ||
		(comment.Post != nil && comment.Post.CreatedByID == userID)
	if !allowed {
		return apperrors.NewForbidden("You cannot delete this comment")
	}

	if err := s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", commentID).Error; err != nil {
		return fmt.Errorf("comment service: delete comment: %w", err)
	}
	return nil
}
