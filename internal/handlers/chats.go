package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evanmori/neighborlink/internal/services"
	appErrors "github.com/evanmori/neighborlink/pkg/errors"
	"github.com/evanmori/neighborlink/pkg/response"
)

// maxUploadBytes caps chat attachments at 5 MiB.
const maxUploadBytes = 5 << 20

var allowedUploadExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".pdf":  {},
}

// ChatHandler exposes the per-assignment chat endpoints.
type ChatHandler struct {
	chats     *services.ChatService
	uploadDir string
}

// NewChatHandler constructs a chat handler. uploadDir is where attachments are
// stored; it must exist and be writable.
func NewChatHandler(chats *services.ChatService, uploadDir string) *ChatHandler {
	return &ChatHandler{chats: chats, uploadDir: uploadDir}
}

type sendMessageRequest struct {
	Content  string `json:"content" validate:"omitempty,max=4000"`
	FileURL  string `json:"file_url" validate:"omitempty,max=500"`
	FileName string `json:"file_name" validate:"omitempty,max=255"`
}

// Get returns the chat for an assignment, creating it lazily, and marks the
// counterpart's messages read.
func (h *ChatHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chat, err := h.chats.GetOrCreateChat(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, chat)
}

// SendMessage appends a message to the assignment's chat.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.chats.SendMessage(requestContext(c), userID, c.Param("id"), services.SendMessageInput{
		Content:  req.Content,
		FileURL:  req.FileURL,
		FileName: req.FileName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, message)
}

// Upload stores a chat attachment and returns the URL to reference in a
// follow-up message. Files are renamed to a random id so uploads cannot
// clobber or probe each other.
func (h *ChatHandler) Upload(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("A file field is required and must be at most 5 MiB"))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowedUploadExtensions[ext]; !ok {
		response.Error(c, appErrors.NewValidation("Unsupported attachment type"))
		return
	}

	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		response.Error(c, fmt.Errorf("save upload: %w", err))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"file_url":  "/uploads/" + name,
		"file_name": file.Filename,
	})
}

// MarkRead marks the counterpart's messages as read without fetching history.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.chats.MarkRead(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// List returns the caller's chats ordered by latest activity.
func (h *ChatHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chats, err := h.chats.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, chats)
}

// UnreadCount returns the caller's unread message total.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	count, err := h.chats.UnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": count})
}
