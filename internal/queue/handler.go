package queue

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stream-queue-system/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	streams := r.Group("/streams")
	{
		streams.GET("", h.getQueue)
		streams.GET("/my", h.getMyQueue)
		streams.POST("", h.submit)
		streams.POST("/upvote", h.upvote)
		streams.POST("/downvote", h.downvote)
		streams.POST("/next", h.next)
	}
}

type SubmitRequest struct {
	CreatorID string `json:"creator_id" binding:"required"`
	URL       string `json:"url" binding:"required"`
}

type VoteRequest struct {
	StreamID string `json:"stream_id" binding:"required"`
}

func (h *Handler) submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.service.Submit(c.Request.Context(), auth.IdentityFrom(c), req.CreatorID, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) upvote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Upvote(c.Request.Context(), auth.IdentityFrom(c), req.StreamID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "upvoted"})
}

func (h *Handler) downvote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.RetractUpvote(c.Request.Context(), auth.IdentityFrom(c), req.StreamID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "upvote removed"})
}

func (h *Handler) getQueue(c *gin.Context) {
	view, err := h.service.Queue(c.Request.Context(), auth.IdentityFrom(c), c.Query("creator_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) getMyQueue(c *gin.Context) {
	view, err := h.service.MyQueue(c.Request.Context(), auth.IdentityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// next returns {"stream": null} once the queue is empty.
func (h *Handler) next(c *gin.Context) {
	item, err := h.service.Advance(c.Request.Context(), auth.IdentityFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stream": item})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrInvalidLinkFormat), errors.Is(err, ErrInvalidCreator):
		status = http.StatusBadRequest
	case errors.Is(err, ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrAlreadyVoted), errors.Is(err, ErrNoExistingVote):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
