package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/leen-storefront/internal/chat"
	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// ChatService is the customer side of seller chat.
type ChatService interface {
	Live() bool
	Rooms(ctx context.Context) ([]storefront.ChatRoom, error)
	Open(ctx context.Context, sellerID int64) (storefront.ChatRoom, error)
	History(ctx context.Context, roomID int64) ([]storefront.ChatMessage, error)
	Send(ctx context.Context, roomID int64, text string) (storefront.ChatMessage, error)
	Subscribe(ctx context.Context, roomID int64, onMessage func(storefront.ChatMessage)) error
}

const streamWriteTimeout = 5 * time.Second

type ChatHandler struct {
	chat     ChatService
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewChatHandler builds the chat endpoints. allowedOrigins gates the stream
// websocket the same way CORS gates plain requests; empty means same-origin
// only.
func NewChatHandler(svc ChatService, allowedOrigins []string, logger *logging.Logger) *ChatHandler {
	if svc == nil {
		panic("handlers: chat service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &ChatHandler{chat: svc, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *ChatHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/rooms", h.Rooms)
	r.Post("/sellers/{sellerID}/room", h.OpenRoom)
	r.Route("/rooms/{roomID}", func(r chi.Router) {
		r.Get("/messages", h.History)
		r.Post("/messages", h.Send)
		r.Get("/stream", h.Stream)
	})
	return r
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "invalid "+param, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// Rooms lists the sellers the customer has chatted with.
// Route: GET /v1/chat/rooms
func (h *ChatHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.chat.Rooms(r.Context())
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// OpenRoom returns the room with a seller, creating it on first contact.
// Route: POST /v1/chat/sellers/{sellerID}/room
func (h *ChatHandler) OpenRoom(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := pathID(w, r, "sellerID")
	if !ok {
		return
	}
	room, err := h.chat.Open(r.Context(), sellerID)
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Route: GET /v1/chat/rooms/{roomID}/messages
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomID")
	if !ok {
		return
	}
	msgs, err := h.chat.History(r.Context(), roomID)
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// Route: POST /v1/chat/rooms/{roomID}/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomID")
	if !ok {
		return
	}
	var req SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := h.chat.Send(r.Context(), roomID, req.Message)
	if err != nil {
		writeError(w, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Stream relays the room's realtime messages to a websocket until either
// side goes away.
// Route: GET /v1/chat/rooms/{roomID}/stream
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomID")
	if !ok {
		return
	}
	if !h.chat.Live() {
		writeError(w, h.logger, chat.ErrNotConfigured, nil)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		h.logger.Warn("chat stream upgrade failed", "room_id", roomID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// The client only ever closes; reading surfaces that.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	err = h.chat.Subscribe(ctx, roomID, func(msg storefront.ChatMessage) {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			cancel()
		}
	})

	code, text := websocket.CloseNormalClosure, ""
	if err != nil {
		h.logger.Warn("chat stream ended", "room_id", roomID, "error", err)
		code, text = websocket.CloseInternalServerErr, "realtime unavailable"
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}
