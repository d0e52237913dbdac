package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// defaultHistoryLimit caps GET /api/messages when no limit is given.
const defaultHistoryLimit = 100

// MessageHandlers serves room history and accepts new messages.
type MessageHandlers struct {
	store    store.Store
	ingestor *core.Ingestor
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, ingestor *core.Ingestor, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store:    st,
		ingestor: ingestor,
		log:      logger,
	}
}

// PostMessageRequest represents the post message request body.
type PostMessageRequest struct {
	MessageType string `json:"messageType" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

// resolveRoom looks up the room named by the :room_uuid path parameter.
func (h *MessageHandlers) resolveRoom(c *gin.Context) (*store.Room, bool) {
	room, err := h.store.GetRoomByUUID(c.Request.Context(), c.Param("room_uuid"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return nil, false
		}
		h.log.Error().Err(err).Msg("failed to get room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return nil, false
	}
	return room, true
}

// ListMessages returns the room's history in chronological order.
// GET /api/messages/:room_uuid?limit=N
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	room, ok := h.resolveRoom(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	member, err := h.store.IsMember(ctx, uid, room.ID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", uid).Int64("room_id", room.ID).Msg("membership check failed")
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: core.ErrNotMember.Error()})
		return
	}

	messages, err := h.store.ListMessages(ctx, room.ID, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	frames := make([]proto.MessageFrame, 0, len(messages))
	for _, m := range messages {
		msg, err := core.MessageFromStore(m)
		if err != nil {
			h.log.Error().Err(err).Str("message_id", m.ID).Msg("malformed stored message")
			continue
		}
		frames = append(frames, proto.FrameFromMessage(msg))
	}

	c.JSON(http.StatusOK, frames)
}

// PostMessage persists a message and publishes it to the room's live streams.
// POST /api/messages/:room_uuid
func (h *MessageHandlers) PostMessage(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid post message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content must not be empty"})
		return
	}

	room, ok := h.resolveRoom(c)
	if !ok {
		return
	}

	msg, err := h.ingestor.Ingest(c.Request.Context(), room.ID, uid, req.MessageType, req.Content)
	if err != nil {
		status := statusForCoreError(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("room_id", room.ID).Int64("user_id", uid).Msg("failed to ingest message")
		}
		c.JSON(status, ErrorResponse{Error: core.AsCoreError(err).Message})
		return
	}

	c.JSON(http.StatusCreated, proto.FrameFromMessage(msg))
}

// statusForCoreError maps core sentinel errors to HTTP statuses.
func statusForCoreError(err error) int {
	switch core.ErrorCode(err) {
	case core.ErrCodeUnauthenticated, core.ErrCodeTokenRejected:
		return http.StatusUnauthorized
	case core.ErrCodeNotMember:
		return http.StatusForbidden
	case core.ErrCodeRoomNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
