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

// CreatePostInput carries a new board post.
type CreatePostInput struct {
	Title       string
	Description string
	Type        string
	Category    string
	Location    string
	Image       string
}

// UpdatePostInput carries owner edits. Nil fields are left untouched. Status
// is deliberately absent: only the assignment lifecycle writes it.
type UpdatePostInput struct {
	Title       *string
	Description *string
	Category    *string
	Location    *string
	Image       *string
}

// ListPostsInput filters the board feed.
type ListPostsInput struct {
	Type     string
	Status   string
	Category string
	Search   string
	Limit    int
	Offset   int
}

// PostService manages board posts.
type PostService struct {
	db *gorm.DB
}

// NewPostService constructs a PostService.
func NewPostService(db *gorm.DB) (*PostService, error) {
	if db == nil {
		return nil, errors.New("post service: db is required")
	}
	return &PostService{db: db}, nil
}

// Create publishes a new post for the supplied user.
func (s *PostService) Create(ctx context.Context, userID string, input CreatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Title == "" || input.Description == "" {
		return nil, apperrors.NewValidation("Title and description are required")
	}
	if input.Type != models.PostTypeRequest && input.Type != models.PostTypeOffer {
		return nil, apperrors.NewValidation("Post type must be request or offer")
	}

	post := models.Post{
		Title:       input.Title,
		Description: input.Description,
		Type:        input.Type,
		Status:      models.PostStatusOpen,
		Category:    defaultIfEmpty(strings.TrimSpace(input.Category), "general"),
		Location:    strings.TrimSpace(input.Location),
		Image:       strings.TrimSpace(input.Image),
		CreatedByID: userID,
	}

	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("post service: create post: %w", err)
	}
	return &post, nil
}

// GetByID returns one post with its author.
func (s *PostService) GetByID(ctx context.Context, postID string) (*models.Post, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	if err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Post not found")
		}
		return nil, fmt.Errorf("post service: load post: %w", err)
	}
	return &post, nil
}

// List returns posts matching the filters, newest first.
func (s *PostService) List(ctx context.Context, input ListPostsInput) ([]models.Post, int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Post{})
	if input.Type != "" {
		query = query.Where("type = ?", input.Type)
	}
	if input.Status != "" {
		query = query.Where("status = ?", input.Status)
	}
	if input.Category != "" {
		query = query.Where("category = ?", input.Category)
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("post service: count posts: %w", err)
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var posts []models.Post
	if err := query.
		Preload("CreatedBy").
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("post service: list posts: %w", err)
	}
	return posts, total, nil
}

// Update applies owner edits to a post. The status field is never touched here.
func (s *PostService) Update(ctx context.Context, userID, postID string, input UpdatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	post, err := s.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.CreatedByID != userID {
		return nil, apperrors.NewForbidden("Only the author can edit a post")
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidation("Title cannot be empty")
		}
		updates["title"] = title
		post.Title = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewValidation("Description cannot be empty")
		}
		updates["description"] = description
		post.Description = description
	}
	if input.Category != nil {
		category := defaultIfEmpty(strings.TrimSpace(*input.Category), "general")
		updates["category"] = category
		post.Category = category
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
		post.Location = strings.TrimSpace(*input.Location)
	}
	if input.Image != nil {
		updates["image"] = strings.TrimSpace(*input.Image)
		post.Image = strings.TrimSpace(*input.Image)
	}
	if len(updates) == 0 {
		return post, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("post service: update post: %w", err)
	}
	return post, nil
}

// Delete removes a post and its comments. The owner cannot delete while a
// helper holds an active claim; the claim must resolve first.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	ctx = ensureContext(ctx)

	post, err := s.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.CreatedByID != userID {
		return apperrors.NewForbidden("Only the author can delete a post")
	}

	var active int64
	if err := s.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("post_id = ? AND status IN ?", postID, models.AssignmentActiveStatuses).
		Count(&active).Error; err != nil {
		return fmt.Errorf("post service: count active assignments: %w", err)
	}
	if active > 0 {
		return apperrors.NewConflict("This post has an active claim and cannot be deleted")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := tx.Delete(&models.Post{}, "id = ?", postID).Error; err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("post service: delete post: %w", err)
	}
	return nil
}
