package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/services"
	"github.com/evanmori/neighborlink/pkg/response"
)

// PostHandler exposes the board's post endpoints.
type PostHandler struct {
	posts *services.PostService
}

// NewPostHandler constructs a post handler.
func NewPostHandler(db *gorm.DB) (*PostHandler, error) {
	posts, err := services.NewPostService(db)
	if err != nil {
		return nil, err
	}
	return &PostHandler{posts: posts}, nil
}

type createPostRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
	Type        string `json:"type" validate:"required,oneof=request offer"`
	Category    string `json:"category" validate:"omitempty,max=64"`
	Location    string `json:"location" validate:"omitempty,max=200"`
	Image       string `json:"image" validate:"omitempty,max=500"`
}

type updatePostRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Category    *string `json:"category" validate:"omitempty,max=64"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
	Image       *string `json:"image" validate:"omitempty,max=500"`
}

// Create publishes a new post.
func (h *PostHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createPostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.posts.Create(requestContext(c), userID, services.CreatePostInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Category:    req.Category,
		Location:    req.Location,
		Image:       req.Image,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, post)
}

// List returns the board feed with optional filters.
func (h *PostHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	posts, total, err := h.posts.List(requestContext(c), services.ListPostsInput{
		Type:     c.Query("type"),
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, posts, &response.Meta{
		Total:   int(total),
		PerPage: limit,
	})
}

// Get returns one post.
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.posts.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// Update applies owner edits.
func (h *PostHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req updatePostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.posts.Update(requestContext(c), userID, c.Param("id"), services.UpdatePostInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Image:       req.Image,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// Delete removes a post.
func (h *PostHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.posts.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
