// Package chat connects a customer to seller chat rooms: history and sending
// go through the marketplace REST API, live delivery through the realtime
// channel.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// ErrEmptyMessage is returned when Send is given only whitespace.
var ErrEmptyMessage = errors.New("chat: message is empty")

// RoomAPI is the REST part of chat.
type RoomAPI interface {
	ChatSellers(ctx context.Context) ([]storefront.ChatRoom, error)
	OpenRoom(ctx context.Context, sellerID int64) (storefront.ChatRoom, error)
	ChatMessages(ctx context.Context, roomID int64) ([]storefront.ChatMessage, error)
	SendChatMessage(ctx context.Context, roomID int64, text string) (storefront.ChatMessage, error)
}

// Realtime delivers live messages for a room.
type Realtime interface {
	Subscribe(ctx context.Context, roomID int64, onMessage func(storefront.ChatMessage)) error
}

// Messenger is the chat collaborator the booking flow stays independent of.
type Messenger struct {
	rooms    RoomAPI
	realtime Realtime
	logger   *logging.Logger
}

// NewMessenger wires the REST API and, optionally, the realtime channel.
// Without realtime, Subscribe returns ErrNotConfigured.
func NewMessenger(rooms RoomAPI, realtime Realtime, logger *logging.Logger) *Messenger {
	if rooms == nil {
		panic("chat: room api required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Messenger{rooms: rooms, realtime: realtime, logger: logger}
}

// Live reports whether realtime delivery is configured.
func (m *Messenger) Live() bool { return m.realtime != nil }

func (m *Messenger) Rooms(ctx context.Context) ([]storefront.ChatRoom, error) {
	return m.rooms.ChatSellers(ctx)
}

func (m *Messenger) Open(ctx context.Context, sellerID int64) (storefront.ChatRoom, error) {
	return m.rooms.OpenRoom(ctx, sellerID)
}

func (m *Messenger) History(ctx context.Context, roomID int64) ([]storefront.ChatMessage, error) {
	return m.rooms.ChatMessages(ctx, roomID)
}

// Send posts text to the room. Delivery to other participants happens via
// the realtime channel, not through the return value.
func (m *Messenger) Send(ctx context.Context, roomID int64, text string) (storefront.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return storefront.ChatMessage{}, ErrEmptyMessage
	}
	msg, err := m.rooms.SendChatMessage(ctx, roomID, text)
	if err != nil {
		m.logger.Warn("chat send failed", "room_id", roomID, "error", err)
		return storefront.ChatMessage{}, fmt.Errorf("chat: send: %w", err)
	}
	return msg, nil
}

// Subscribe blocks delivering room messages to onMessage until ctx is done.
func (m *Messenger) Subscribe(ctx context.Context, roomID int64, onMessage func(storefront.ChatMessage)) error {
	if m.realtime == nil {
		return ErrNotConfigured
	}
	if onMessage == nil {
		return errors.New("chat: onMessage required")
	}
	m.logger.Info("chat subscription opened", "room_id", roomID)
	defer m.logger.Info("chat subscription closed", "room_id", roomID)
	return m.realtime.Subscribe(ctx, roomID, onMessage)
}
