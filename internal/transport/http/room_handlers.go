package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name   string `json:"name" binding:"required,min=1,max=64"`
	Global bool   `json:"global"`
}

// AddMemberRequest represents the add member request body.
type AddMemberRequest struct {
	Username string `json:"username" binding:"required"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	Global    bool   `json:"global"`
	CreatedAt string `json:"created_at"`
}

func roomToResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		UUID:      room.UUID,
		Name:      room.Name,
		Owner:     room.OwnerName,
		Global:    room.Global,
		CreatedAt: room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room name must not be empty"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), name, req.Global, uid)
	if err != nil {
		h.log.Error().Err(err).Str("room_name", name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_uuid", room.UUID).Int64("owner_id", uid).Bool("global", room.Global).Msg("room created successfully")
	c.JSON(http.StatusCreated, roomToResponse(room))
}

// ListRooms handles listing accessible rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	rooms, err := h.store.ListRooms(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomToResponse(room))
	}

	h.log.Debug().Int64("user_id", uid).Int("room_count", len(rooms)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, response)
}

// AddMember adds a user to a room. Only the owner may do this.
// POST /api/rooms/:room_uuid/members
func (h *RoomHandlers) AddMember(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	room, err := h.store.GetRoomByUUID(ctx, c.Param("room_uuid"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to get room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if room.OwnerID != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the room owner can add members"})
		return
	}

	user, err := h.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to get user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if err := h.store.AddMember(ctx, user.ID, room.ID); err != nil {
		h.log.Error().Err(err).Str("room_uuid", room.UUID).Int64("user_id", user.ID).Msg("failed to add member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_uuid", room.UUID).Str("username", user.Username).Msg("member added")
	c.JSON(http.StatusOK, UserResponse{UUID: user.UUID, Username: user.Username})
}
