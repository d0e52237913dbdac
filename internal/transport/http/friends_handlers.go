package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/service/friends"
)

// FriendsHandlers provides HTTP handlers for friend management endpoints.
type FriendsHandlers struct {
	service *friends.Service
	log     *zerolog.Logger
}

// NewFriendsHandlers creates a new friends handlers instance.
func NewFriendsHandlers(svc *friends.Service, logger *zerolog.Logger) *FriendsHandlers {
	return &FriendsHandlers{
		service: svc,
		log:     logger,
	}
}

// SendFriendRequestRequest represents the request body for sending a friend request.
type SendFriendRequestRequest struct {
	ReceiverUsername string `json:"receiver_username" binding:"required"`
}

// AcceptFriendRequestRequest represents the request body for accepting a friend request.
type AcceptFriendRequestRequest struct {
	SenderUUID string `json:"sender_uuid" binding:"required"`
}

// FriendRequestResponse represents a pending friend request in API responses.
type FriendRequestResponse struct {
	SenderUUID     string `json:"sender_uuid"`
	SenderUsername string `json:"sender_username"`
	CreatedAt      string `json:"created_at"`
}

// friendsErrorStatus maps friends service errors to HTTP statuses.
func friendsErrorStatus(err error) int {
	switch {
	case errors.Is(err, friends.ErrCannotFriendSelf):
		return http.StatusBadRequest
	case errors.Is(err, friends.ErrUserNotFound), errors.Is(err, friends.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, friends.ErrAlreadyFriends), errors.Is(err, friends.ErrRequestAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *FriendsHandlers) writeError(c *gin.Context, err error, msg string) {
	status := friendsErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// SendRequest handles sending a friend request.
// POST /api/friends/request
func (h *FriendsHandlers) SendRequest(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid friend request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	receiver, err := h.service.SendRequest(c.Request.Context(), uid, req.ReceiverUsername)
	if err != nil {
		h.writeError(c, err, "failed to send friend request")
		return
	}

	h.log.Info().Int64("sender_id", uid).Int64("receiver_id", receiver.ID).Msg("friend request sent")
	c.JSON(http.StatusCreated, UserResponse{UUID: receiver.UUID, Username: receiver.Username})
}

// AcceptRequest handles accepting a friend request.
// POST /api/friends/accept
func (h *FriendsHandlers) AcceptRequest(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req AcceptFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid accept request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	sender, err := h.service.AcceptRequest(c.Request.Context(), uid, req.SenderUUID)
	if err != nil {
		h.writeError(c, err, "failed to accept friend request")
		return
	}

	h.log.Info().Int64("receiver_id", uid).Int64("sender_id", sender.ID).Msg("friend request accepted")
	c.JSON(http.StatusOK, UserResponse{UUID: sender.UUID, Username: sender.Username})
}

// ListFriends handles listing friends.
// GET /api/friends
func (h *FriendsHandlers) ListFriends(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	list, err := h.service.ListFriends(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err, "failed to list friends")
		return
	}

	response := make([]UserResponse, 0, len(list))
	for _, f := range list {
		response = append(response, UserResponse{UUID: f.UUID, Username: f.Username})
	}
	c.JSON(http.StatusOK, response)
}

// ListRequests handles listing incoming friend requests.
// GET /api/friends/requests
func (h *FriendsHandlers) ListRequests(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	requests, err := h.service.ListPendingRequests(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err, "failed to list friend requests")
		return
	}

	response := make([]FriendRequestResponse, 0, len(requests))
	for _, r := range requests {
		response = append(response, FriendRequestResponse{
			SenderUUID:     r.SenderUUID,
			SenderUsername: r.SenderUsername,
			CreatedAt:      r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, response)
}
