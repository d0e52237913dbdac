package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/rs/zerolog"
	"golang.org/x/net/http/httpguts"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// WSHandlers issues admission tokens and upgrades admitted connections into
// room streams.
type WSHandlers struct {
	rooms          store.RoomStore
	admissions     *core.Admissions
	gate           *core.Gate
	originPatterns []string
	streams        *Streams
	log            *zerolog.Logger
}

// NewWSHandlers builds the stream handlers.
func NewWSHandlers(rooms store.RoomStore, admissions *core.Admissions, gate *core.Gate, originPatterns []string, streams *Streams, logger *zerolog.Logger) *WSHandlers {
	return &WSHandlers{
		rooms:          rooms,
		admissions:     admissions,
		gate:           gate,
		originPatterns: originPatterns,
		streams:        streams,
		log:            logger,
	}
}

// IssueToken grants the caller a single-use admission token for a room.
// GET /ws/issue-token/rooms/:room_uuid
func (h *WSHandlers) IssueToken(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	room, err := h.rooms.GetRoomByUUID(ctx, c.Param("room_uuid"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrRoomNotFound.Error()})
			return
		}
		h.log.Error().Err(err).Msg("failed to get room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	token, err := h.admissions.Issue(ctx, uid, room.ID)
	if err != nil {
		status := statusForCoreError(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to issue admission token")
		}
		c.JSON(status, ErrorResponse{Error: core.AsCoreError(err).Message})
		return
	}

	h.log.Debug().Int64("room_id", room.ID).Int64("user_id", uid).Time("expires_at", token.ExpiresAt).Msg("admission token issued")
	c.JSON(http.StatusCreated, proto.AdmissionTokenResponse{Token: token.Token})
}

// Stream admits the connection with its token and relays the room's
// messages until either side goes away.
// GET /ws/rooms/{room_uuid}?token=...
func (h *WSHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	// Reject before Admit: the token must survive a non-upgrade request.
	if !isWebSocketUpgrade(r) {
		w.Header().Set("Upgrade", "websocket")
		w.Header().Set("Sec-WebSocket-Version", "13")
		writeJSON(w, http.StatusUpgradeRequired, ErrorResponse{Error: "websocket upgrade required"})
		return
	}

	release, ok := h.streams.acquire()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "server shutting down"})
		return
	}
	defer release()

	adm, err := h.gate.Admit(r.Context(), r.PathValue("room_uuid"), r.URL.Query().Get(proto.QueryToken))
	if err != nil {
		status := statusForCoreError(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Stringer("state", adm.State).Msg("stream admission failed")
		}
		writeJSON(w, status, ErrorResponse{Error: core.AsCoreError(err).Message})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		adm.Release()
		h.log.Warn().Err(err).Int64("room_id", adm.RoomID).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	log := h.log.With().
		Int64("room_id", adm.RoomID).
		Int64("user_id", adm.UserID).
		Uint64("subscriber_id", adm.Subscriber.ID()).
		Logger()
	log.Debug().Int("active_streams", h.streams.Active()).Msg("stream opened")

	// The stream is server to client only; CloseRead discards client
	// frames and cancels ctx once the peer closes. Shutdown cancels only
	// the delivery side so the close handshake can still complete.
	ctx, cancel := h.streams.bind(conn.CloseRead(r.Context()))
	defer cancel()

	sink := core.SinkFunc(func(ctx context.Context, msg core.Message) error {
		return wsjson.Write(ctx, conn, proto.FrameFromMessage(msg))
	})

	if err := core.Deliver(ctx, adm.Hub, adm.Subscriber, sink, &log); err != nil {
		status := websocket.CloseStatus(err)
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
			log.Debug().Msg("stream closed by peer")
			return
		}
		log.Warn().Err(err).Msg("stream ended with error")
		conn.Close(websocket.StatusInternalError, "delivery failed")
		return
	}

	if h.streams.ShuttingDown() {
		log.Debug().Msg("stream closed for shutdown")
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	log.Debug().Msg("stream closed")
	conn.Close(websocket.StatusNormalClosure, "closing")
}

func isWebSocketUpgrade(r *http.Request) bool {
	return httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade") &&
		httpguts.HeaderValuesContainsToken(r.Header["Upgrade"], "websocket") &&
		r.Header.Get("Sec-WebSocket-Version") == "13" &&
		r.Header.Get("Sec-WebSocket-Key") != ""
}

// writeJSON renders v for handlers that run outside the gin router.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = render.JSON{Data: v}.Render(w)
}
