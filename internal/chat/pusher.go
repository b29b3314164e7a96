package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

const (
	protocolVersion  = "7"
	clientName       = "leen-storefront"
	clientVersion    = "1.0"
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second

	eventConnectionEstablished = "pusher:connection_established"
	eventSubscribe             = "pusher:subscribe"
	eventSubscribed            = "pusher_internal:subscription_succeeded"
	eventPing                  = "pusher:ping"
	eventPong                  = "pusher:pong"
	eventError                 = "pusher:error"
	eventNewMessage            = "new-message"
)

var (
	ErrNotConfigured = errors.New("chat: realtime channel not configured")
	ErrAuthRejected  = errors.New("chat: channel authorization rejected")
)

// RoomChannel is the private channel carrying one room's messages.
func RoomChannel(roomID int64) string {
	return fmt.Sprintf("private-chat-room.%d", roomID)
}

// PusherConfig locates the realtime service.
type PusherConfig struct {
	AppKey       string
	Cluster      string
	Host         string // overrides the cluster host, e.g. ws://127.0.0.1:6001
	AuthEndpoint string
}

func (c PusherConfig) socketURL() (string, error) {
	if strings.TrimSpace(c.AppKey) == "" {
		return "", ErrNotConfigured
	}
	host := strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if host == "" {
		cluster := c.Cluster
		if cluster == "" {
			cluster = "mt1"
		}
		host = fmt.Sprintf("wss://ws-%s.pusher.com", cluster)
	}
	q := url.Values{}
	q.Set("protocol", protocolVersion)
	q.Set("client", clientName)
	q.Set("version", clientVersion)
	return fmt.Sprintf("%s/app/%s?%s", host, url.PathEscape(c.AppKey), q.Encode()), nil
}

// frame is one Pusher protocol message. Data is either an object or a JSON
// string holding an object, depending on the event.
type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (f frame) payload() []byte {
	data := bytes.TrimSpace(f.Data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return []byte(s)
		}
	}
	return data
}

// Subscriber receives room messages over the Pusher channel protocol.
type Subscriber struct {
	cfg        PusherConfig
	dialer     *websocket.Dialer
	httpClient *http.Client
	tokens     storefront.TokenProvider
	logger     *logging.Logger
}

func NewSubscriber(cfg PusherConfig, tokens storefront.TokenProvider, logger *logging.Logger) *Subscriber {
	if tokens == nil {
		tokens = storefront.ContextToken{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Subscriber{
		cfg:        cfg,
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		httpClient: &http.Client{Timeout: handshakeTimeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// Subscribe joins the room's channel and calls onMessage for every new
// message until ctx is done or the connection fails. It returns nil when ctx
// ends the subscription.
func (s *Subscriber) Subscribe(ctx context.Context, roomID int64, onMessage func(storefront.ChatMessage)) error {
	endpoint, err := s.cfg.socketURL()
	if err != nil {
		return err
	}
	conn, resp, err := s.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("chat: dial realtime: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(f frame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(f)
	}

	stop := context.AfterFunc(ctx, func() {
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		writeMu.Unlock()
		conn.Close()
	})
	defer stop()

	socketID, err := s.awaitConnection(conn)
	if err != nil {
		return err
	}

	channel := RoomChannel(roomID)
	auth, err := s.authorize(ctx, socketID, channel)
	if err != nil {
		return err
	}
	sub, _ := json.Marshal(map[string]string{"channel": channel, "auth": auth})
	if err := send(frame{Event: eventSubscribe, Data: sub}); err != nil {
		return fmt.Errorf("chat: subscribe: %w", err)
	}
	s.logger.Debug("realtime subscription requested", "channel", channel)

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("chat: read realtime: %w", err)
		}
		switch f.Event {
		case eventPing:
			if err := send(frame{Event: eventPong, Data: json.RawMessage(`{}`)}); err != nil {
				return fmt.Errorf("chat: pong: %w", err)
			}
		case eventSubscribed:
			s.logger.Debug("realtime subscription active", "channel", f.Channel)
		case eventError:
			return fmt.Errorf("chat: realtime error: %s", f.payload())
		case eventNewMessage:
			if f.Channel != "" && f.Channel != channel {
				continue
			}
			msg, err := DecodeMessage(f.payload())
			if err != nil {
				s.logger.Warn("dropping malformed chat event", "channel", channel, "error", err)
				continue
			}
			if msg.RoomID == 0 {
				msg.RoomID = roomID
			}
			onMessage(msg)
		}
	}
}

func (s *Subscriber) awaitConnection(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		return "", fmt.Errorf("chat: await connection: %w", err)
	}
	if f.Event == eventError {
		return "", fmt.Errorf("chat: realtime refused connection: %s", f.payload())
	}
	if f.Event != eventConnectionEstablished {
		return "", fmt.Errorf("chat: unexpected first event %q", f.Event)
	}
	var established struct {
		SocketID string `json:"socket_id"`
	}
	if err := json.Unmarshal(f.payload(), &established); err != nil || established.SocketID == "" {
		return "", fmt.Errorf("chat: connection established without socket id")
	}
	return established.SocketID, nil
}

// authorize signs the private channel subscription through the marketplace.
func (s *Subscriber) authorize(ctx context.Context, socketID, channel string) (string, error) {
	if s.cfg.AuthEndpoint == "" {
		return "", fmt.Errorf("%w: no auth endpoint", ErrNotConfigured)
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("chat: authorize: %w", err)
	}
	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AuthEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("chat: build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: auth request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("chat: read auth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("chat channel authorization failed", "status", resp.StatusCode, "channel", channel)
		return "", fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)
	}
	var out struct {
		Auth string `json:"auth"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Auth == "" {
		return "", fmt.Errorf("%w: no signature in response", ErrAuthRejected)
	}
	return out.Auth, nil
}
