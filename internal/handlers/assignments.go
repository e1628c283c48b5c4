package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evanmori/neighborlink/internal/services"
	"github.com/evanmori/neighborlink/pkg/response"
)

// AssignmentHandler exposes the claim lifecycle endpoints.
type AssignmentHandler struct {
	assignments *services.AssignmentService
}

// NewAssignmentHandler constructs an assignment handler around an existing
// service so the router can share one wired instance.
func NewAssignmentHandler(assignments *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

type claimRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type decideRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress completed cancelled"`
}

type reviewRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"omitempty,max=2000"`
}

// Claim creates a pending claim on a post.
func (h *AssignmentHandler) Claim(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req claimRequest
	if !bindAndValidate(c, &req) {
		return
	}

	assignment, err := h.assignments.Claim(requestContext(c), services.ClaimInput{
		PostID:   c.Param("id"),
		HelperID: userID,
		Message:  req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, assignment)
}

// Decide approves or rejects a pending claim.
func (h *AssignmentHandler) Decide(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req decideRequest
	if !bindAndValidate(c, &req) {
		return
	}

	assignment, err := h.assignments.Decide(requestContext(c), userID, c.Param("id"), *req.Approved)
	if err != nil {
		response.Error(c, err)
		return
	}
	if assignment == nil {
		// Rejection removes the claim entirely.
		response.Success(c, http.StatusOK, gin.H{"rejected": true})
		return
	}
	response.Success(c, http.StatusOK, assignment)
}

// UpdateStatus moves an assignment along the lifecycle.
func (h *AssignmentHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	assignment, err := h.assignments.UpdateStatus(requestContext(c), userID, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignment)
}

// Review records the owner's rating of a completed assignment.
func (h *AssignmentHandler) Review(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if !bindAndValidate(c, &req) {
		return
	}

	assignment, err := h.assignments.AddReview(requestContext(c), userID, c.Param("id"), services.ReviewInput{
		Rating: req.Rating,
		Review: req.Review,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignment)
}

// Get returns one assignment for a participant.
func (h *AssignmentHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	assignment, err := h.assignments.GetByID(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignment)
}

// ListForPost returns a post's assignments scoped to the caller.
func (h *AssignmentHandler) ListForPost(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	assignments, err := h.assignments.ListForPost(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignments)
}

// Mine returns the caller's own claims.
func (h *AssignmentHandler) Mine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	assignments, err := h.assignments.ListForHelper(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignments)
}
