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

// ClaimInput carries a helper's claim on a request post.
type ClaimInput struct {
	PostID   string
	HelperID string
	Message  string
}

// ReviewInput carries the owner's rating of a completed assignment.
type ReviewInput struct {
	Rating int
	Review string
}

// assignmentTransitions is the lifecycle table for helper-driven moves. The
// pending state is absent on purpose: leaving pending goes through the owner's
// approve/reject decision, not through UpdateStatus.
var assignmentTransitions = map[string][]string{
	models.AssignmentStatusApproved:   {models.AssignmentStatusInProgress, models.AssignmentStatusCancelled},
	models.AssignmentStatusInProgress: {models.AssignmentStatusCompleted, models.AssignmentStatusCancelled},
}

// AssignmentService owns the claim lifecycle. It is the only writer of
// assignment status and of the post status that mirrors it.
type AssignmentService struct {
	db     *gorm.DB
	events EventSink
	push   realtime.Broadcaster
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(db *gorm.DB, events EventSink, push realtime.Broadcaster) (*AssignmentService, error) {
	if db == nil {
		return nil, errors.New("assignment service: db is required")
	}
	if events == nil {
		events = NopEventSink{}
	}
	if push == nil {
		push = realtime.NopBroadcaster{}
	}
	return &AssignmentService{db: db, events: events, push: push}, nil
}

// Claim creates a pending assignment for the helper on an open request post.
// The one-active-claim-per-post rule is enforced by the partial unique index,
// not by a read-then-write check, so two racing claims cannot both succeed.
func (s *AssignmentService) Claim(ctx context.Context, input ClaimInput) (*models.Assignment, error) {
	ctx = ensureContext(ctx)

	input.Message = strings.TrimSpace(input.Message)
	if input.Message == "" {
		return nil, apperrors.NewValidation("A message describing how you can help is required")
	}

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", input.PostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Post not found")
		}
		return nil, fmt.Errorf("assignment service: load post: %w", err)
	}

	if post.Type != models.PostTypeRequest {
		return nil, apperrors.NewInvalidOperation("Only request posts can be claimed")
	}
	if post.Status != models.PostStatusOpen {
		return nil, apperrors.NewConflict("This post is no longer open for claims")
	}
	if post.CreatedByID == input.HelperID {
		return nil, apperrors.NewInvalidOperation("You cannot claim your own post")
	}

	assignment := models.Assignment{
		PostID:   post.ID,
		HelperID: input.HelperID,
		Status:   models.AssignmentStatusPending,
		Message:  input.Message,
	}

	if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("This post already has an active claim")
		}
		return nil, fmt.Errorf("assignment service: create assignment: %w", err)
	}
	metrics.AssignmentTransitions.WithLabelValues(models.AssignmentStatusPending).Inc()

	var helper models.User
	if err := s.db.WithContext(ctx).First(&helper, "id = ?", input.HelperID).Error; err != nil {
		return nil, fmt.Errorf("assignment service: load helper: %w", err)
	}
	assignment.Helper = &helper
	assignment.Post = &post

	s.events.Dispatch(ctx, AssignmentClaimedEvent{Assignment: &assignment, Post: &post, Helper: &helper})
	s.pushStatus(&assignment, post.CreatedByID)

	return &assignment, nil
}

// Decide resolves a pending claim. Approval moves the assignment to approved;
// rejection deletes it outright and leaves the post open for the next helper.
// Only the post owner may decide.
func (s *AssignmentService) Decide(ctx context.Context, ownerID, assignmentID string, approve bool) (*models.Assignment, error) {
	ctx = ensureContext(ctx)

	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if assignment.Post.CreatedByID != ownerID {
		return nil, apperrors.NewForbidden("Only the post owner can approve or reject claims")
	}
	if assignment.Status != models.AssignmentStatusPending {
		return nil, apperrors.NewInvalidOperation("Only pending claims can be approved or rejected")
	}

	owner := models.User{}
	if err := s.db.WithContext(ctx).First(&owner, "id = ?", ownerID).Error; err != nil {
		return nil, fmt.Errorf("assignment service: load owner: %w", err)
	}

	if !approve {
		if err := s.db.WithContext(ctx).Delete(&models.Assignment{}, "id = ?", assignment.ID).Error; err != nil {
			return nil, fmt.Errorf("assignment service: delete rejected assignment: %w", err)
		}
		metrics.AssignmentTransitions.WithLabelValues("rejected").Inc()

		s.events.Dispatch(ctx, AssignmentRejectedEvent{Assignment: assignment, Post: assignment.Post, Owner: &owner})
		assignment.Status = "rejected" // wire-only status; the row is gone
		s.pushStatus(assignment, assignment.HelperID)
		return nil, nil
	}

	// The post mirrors the approval in the same transaction so it never reads
	// as open while an approved claim exists.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Assignment{}).
			Where("id = ?", assignment.ID).
			Update("status", models.AssignmentStatusApproved).Error; err != nil {
			return fmt.Errorf("approve assignment: %w", err)
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ?", assignment.PostID).
			Update("status", models.PostStatusInProgress).Error; err != nil {
			return fmt.Errorf("update post status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assignment service: approve: %w", err)
	}
	assignment.Status = models.AssignmentStatusApproved
	assignment.Post.Status = models.PostStatusInProgress
	metrics.AssignmentTransitions.WithLabelValues(models.AssignmentStatusApproved).Inc()

	s.events.Dispatch(ctx, AssignmentApprovedEvent{Assignment: assignment, Post: assignment.Post, Owner: &owner})
	s.pushStatus(assignment, assignment.HelperID)

	return assignment, nil
}

// UpdateStatus advances an assignment along the lifecycle. Either participant
// may move it (the helper works it, the owner can cancel), only along the
// transition table, and the post status follows in the same transaction:
// starting work marks the post in progress, completing marks it completed,
// cancelling reopens it.
func (s *AssignmentService) UpdateStatus(ctx context.Context, actorID, assignmentID, newStatus string) (*models.Assignment, error) {
	ctx = ensureContext(ctx)

	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if assignment.HelperID != actorID && assignment.Post.CreatedByID != actorID {
		return nil, apperrors.NewForbidden("You can only update assignments you are involved in")
	}
	if assignment.IsTerminal() {
		return nil, apperrors.NewInvalidOperation(
			fmt.Sprintf("A %s assignment can no longer change", assignment.Status))
	}
	if !containsString(assignmentTransitions[assignment.Status], newStatus) {
		return nil, apperrors.NewInvalidOperation(
			fmt.Sprintf("Cannot move an assignment from %s to %s", assignment.Status, newStatus))
	}

	oldStatus := assignment.Status
	now := time.Now().UTC()

	updates := map[string]any{"status": newStatus}
	postStatus := ""
	switch newStatus {
	case models.AssignmentStatusInProgress:
		updates["started_at"] = now
		postStatus = models.PostStatusInProgress
	case models.AssignmentStatusCompleted:
		updates["completed_at"] = now
		postStatus = models.PostStatusCompleted
	case models.AssignmentStatusCancelled:
		postStatus = models.PostStatusOpen
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Assignment{}).
			Where("id = ?", assignment.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update assignment: %w", err)
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ?", assignment.PostID).
			Update("status", postStatus).Error; err != nil {
			return fmt.Errorf("update post status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assignment service: transition to %s: %w", newStatus, err)
	}

	assignment.Status = newStatus
	assignment.Post.Status = postStatus
	switch newStatus {
	case models.AssignmentStatusInProgress:
		assignment.StartedAt = &now
	case models.AssignmentStatusCompleted:
		assignment.CompletedAt = &now
	}
	metrics.AssignmentTransitions.WithLabelValues(newStatus).Inc()

	s.events.Dispatch(ctx, AssignmentStatusChangedEvent{
		Assignment: assignment,
		Post:       assignment.Post,
		Helper:     assignment.Helper,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
	})
	s.pushStatus(assignment, assignment.Post.CreatedByID, assignment.HelperID)

	return assignment, nil
}

// AddReview records the owner's rating of a completed assignment. An
// assignment is reviewed at most once.
func (s *AssignmentService) AddReview(ctx context.Context, ownerID, assignmentID string, input ReviewInput) (*models.Assignment, error) {
	ctx = ensureContext(ctx)

	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.NewValidation("Rating must be between 1 and 5")
	}

	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if assignment.Post.CreatedByID != ownerID {
		return nil, apperrors.NewForbidden("Only the post owner can review an assignment")
	}
	if assignment.Status != models.AssignmentStatusCompleted {
		return nil, apperrors.NewInvalidOperation("Only completed assignments can be reviewed")
	}
	if assignment.Rating != nil {
		return nil, apperrors.NewConflict("This assignment has already been reviewed")
	}

	review := strings.TrimSpace(input.Review)
	if err := s.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("id = ?", assignment.ID).
		Updates(map[string]any{"rating": input.Rating, "review": review}).Error; err != nil {
		return nil, fmt.Errorf("assignment service: save review: %w", err)
	}

	assignment.Rating = &input.Rating
	assignment.Review = review
	return assignment, nil
}

// GetByID returns an assignment with its post and helper. Only the two
// participants may see it.
func (s *AssignmentService) GetByID(ctx context.Context, userID, assignmentID string) (*models.Assignment, error) {
	ctx = ensureContext(ctx)

	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.HelperID != userID && assignment.Post.CreatedByID != userID {
		return nil, apperrors.NewNotFound("Assignment not found")
	}
	return assignment, nil
}

// ListForPost returns every assignment on a post, newest first. Only the post
// owner sees the full list; anyone else sees just their own claims.
func (s *AssignmentService) ListForPost(ctx context.Context, userID, postID string) ([]models.Assignment, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Post not found")
		}
		return nil, fmt.Errorf("assignment service: load post: %w", err)
	}

	query := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Preload("Helper").
		Order("created_at DESC")
	if post.CreatedByID != userID {
		query = query.Where("helper_id = ?", userID)
	}

	var rows []models.Assignment
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("assignment service: list for post: %w", err)
	}
	return rows, nil
}

// ListForHelper returns the helper's own assignments, newest first.
func (s *AssignmentService) ListForHelper(ctx context.Context, helperID string) ([]models.Assignment, error) {
	ctx = ensureContext(ctx)

	var rows []models.Assignment
	if err := s.db.WithContext(ctx).
		Where("helper_id = ?", helperID).
		Preload("Post").
		Preload("Post.CreatedBy").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("assignment service: list for helper: %w", err)
	}
	return rows, nil
}

func (s *AssignmentService) load(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := s.db.WithContext(ctx).
		Preload("Post").
		Preload("Helper").
		First(&assignment, "id = ?", assignmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Assignment not found")
		}
		return nil, fmt.Errorf("assignment service: load assignment: %w", err)
	}
	if assignment.Post == nil {
		return nil, fmt.Errorf("assignment service: assignment %s has no post", assignment.ID)
	}
	return &assignment, nil
}

// pushStatus tells the named users, and only them, that an assignment moved.
func (s *AssignmentService) pushStatus(assignment *models.Assignment, userIDs ...string) {
	message := realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  realtime.EventAssignmentStatus,
		Data: map[string]any{
			"assignment_id": assignment.ID,
			"post_id":       assignment.PostID,
			"status":        assignment.Status,
		},
	}
	for _, userID := range normaliseIDs(userIDs) {
		s.push.Push(userID, message)
	}
}
