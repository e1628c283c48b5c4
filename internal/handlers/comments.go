package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/services"
	"github.com/evanmori/neighborlink/pkg/response"
)

// CommentHandler exposes comment endpoints nested under posts.
type CommentHandler struct {
	comments *services.CommentService
}

// NewCommentHandler constructs a comment handler.
func NewCommentHandler(db *gorm.DB, events services.EventSink) (*CommentHandler, error) {
	comments, err := services.NewCommentService(db, events)
	if err != nil {
		return nil, err
	}
	return &CommentHandler{comments: comments}, nil
}

type createCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Create adds a comment to a post.
func (h *CommentHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createCommentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	comment, err := h.comments.Create(requestContext(c), userID, c.Param("id"), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, comment)
}

// List returns a post's comments.
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.comments.ListForPost(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, comments)
}

// Delete removes a comment.
func (h *CommentHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.comments.Delete(requestContext(c), userID, c.Param("commentID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
