package chat

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/wolfman30/leen-storefront/internal/storefront"
)

type eventMessage struct {
	ID         json.Number     `json:"id"`
	RoomID     json.Number     `json:"chat_room_id"`
	Message    json.RawMessage `json:"message"`
	SenderType string          `json:"sender_type"`
	CreatedAt  string          `json:"created_at"`
}

// DecodeMessage reads a new-message payload. The broadcaster sends the
// message either flat or nested under "message"; flat fields win.
func DecodeMessage(payload []byte) (storefront.ChatMessage, error) {
	var outer eventMessage
	if err := json.Unmarshal(payload, &outer); err != nil {
		return storefront.ChatMessage{}, err
	}

	var inner eventMessage
	text := ""
	raw := bytes.TrimSpace(outer.Message)
	switch {
	case len(raw) > 0 && raw[0] == '{':
		if err := json.Unmarshal(raw, &inner); err != nil {
			return storefront.ChatMessage{}, err
		}
		if err := json.Unmarshal(bytes.TrimSpace(inner.Message), &text); err != nil {
			return storefront.ChatMessage{}, errors.New("chat: nested message has no text")
		}
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &text); err != nil {
			return storefront.ChatMessage{}, errors.New("chat: message text is not a string")
		}
	default:
		return storefront.ChatMessage{}, errors.New("chat: event has no message")
	}

	msg := storefront.ChatMessage{
		ID:         firstInt(outer.ID, inner.ID),
		RoomID:     firstInt(outer.RoomID, inner.RoomID),
		Message:    text,
		SenderType: firstString(outer.SenderType, inner.SenderType),
	}
	msg.CreatedAt = storefront.ParseTimestamp(firstString(outer.CreatedAt, inner.CreatedAt))
	return msg, nil
}

func firstInt(vals ...json.Number) int64 {
	for _, v := range vals {
		if n, err := v.Int64(); err == nil && n != 0 {
			return n
		}
	}
	return 0
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
