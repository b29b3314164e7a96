package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CustomerSenderType marks messages written by the customer.
const CustomerSenderType = `App\Models\Customers\Customer`

// ChatMessage is one message of a chat room.
type ChatMessage struct {
	ID         int64     `json:"id"`
	RoomID     int64     `json:"room_id,omitempty"`
	Message    string    `json:"message"`
	SenderType string    `json:"sender_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromCustomer reports whether the customer wrote m.
func (m ChatMessage) FromCustomer() bool { return m.SenderType == CustomerSenderType }

type chatMessageDTO struct {
	ID         flexInt `json:"id"`
	RoomID     flexInt `json:"chat_room_id"`
	Message    string  `json:"message"`
	SenderType string  `json:"sender_type"`
	CreatedAt  string  `json:"created_at"`
}

func (d chatMessageDTO) message() ChatMessage {
	m := ChatMessage{
		ID:         int64(d.ID),
		RoomID:     int64(d.RoomID),
		Message:    d.Message,
		SenderType: d.SenderType,
	}
	m.CreatedAt = ParseTimestamp(d.CreatedAt)
	return m
}

// ParseTimestamp accepts the backend's RFC 3339 and "YYYY-MM-DD HH:MM:SS"
// timestamps. Unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05.000000Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ChatRoom is a conversation between the customer and one seller.
type ChatRoom struct {
	ID            int64        `json:"id"`
	SellerID      int64        `json:"seller_id"`
	SellerName    string       `json:"seller_name"`
	SellerLogo    string       `json:"seller_logo,omitempty"`
	LatestMessage *ChatMessage `json:"latest_message,omitempty"`
	UnreadCount   int64        `json:"unread_count"`
}

type chatRoomDTO struct {
	ID            flexInt         `json:"id"`
	Seller        *partyDTO       `json:"seller"`
	LatestMessage *chatMessageDTO `json:"latestMessage"`
	UnreadCount   flexInt         `json:"unreadCount"`
}

func (d chatRoomDTO) room() ChatRoom {
	r := ChatRoom{ID: int64(d.ID), UnreadCount: int64(d.UnreadCount)}
	if d.Seller != nil {
		r.SellerID = int64(d.Seller.ID)
		r.SellerName = d.Seller.party().FullName()
		r.SellerLogo = d.Seller.SellerLogo
	}
	if d.LatestMessage != nil {
		m := d.LatestMessage.message()
		r.LatestMessage = &m
	}
	return r
}

// ChatSellers lists the customer's chat rooms.
func (c *Client) ChatSellers(ctx context.Context) ([]ChatRoom, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, call{op: "chat_sellers", method: http.MethodGet, path: "/chat/sellers", auth: true}, &raw)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[chatRoomDTO](raw, "data")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode chat rooms: %w", err)
	}
	out := make([]ChatRoom, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, dto.room())
	}
	return out, nil
}

// OpenRoom creates or resumes the chat room with a seller.
func (c *Client) OpenRoom(ctx context.Context, sellerID int64) (ChatRoom, error) {
	var resp envelope[chatRoomDTO]
	err := c.doJSON(ctx, call{
		op:     "chat_open_room",
		method: http.MethodGet,
		path:   fmt.Sprintf("/customer/chat/%d", sellerID),
		auth:   true,
	}, &resp)
	if err != nil {
		return ChatRoom{}, err
	}
	room := resp.Data.room()
	if room.SellerID == 0 {
		room.SellerID = sellerID
	}
	return room, nil
}

// ChatMessages returns the history of a room, oldest first as sent by the backend.
func (c *Client) ChatMessages(ctx context.Context, roomID int64) ([]ChatMessage, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, call{
		op:     "chat_messages",
		method: http.MethodGet,
		path:   fmt.Sprintf("/customer/chat/messages/%d", roomID),
		auth:   true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[chatMessageDTO](raw, "data", "messages")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode chat messages: %w", err)
	}
	out := make([]ChatMessage, 0, len(dtos))
	for _, dto := range dtos {
		m := dto.message()
		if m.RoomID == 0 {
			m.RoomID = roomID
		}
		out = append(out, m)
	}
	return out, nil
}

type sendMessageRequest struct {
	ChatRoomID int64  `json:"chat_room_id"`
	Message    string `json:"message"`
}

// SendChatMessage posts text to a room and returns the stored message when
// the backend echoes it.
func (c *Client) SendChatMessage(ctx context.Context, roomID int64, text string) (ChatMessage, error) {
	var resp envelope[*chatMessageDTO]
	err := c.doJSON(ctx, call{
		op:     "chat_send",
		method: http.MethodPost,
		path:   "/customer/chat/sendMessage",
		body:   sendMessageRequest{ChatRoomID: roomID, Message: text},
		auth:   true,
	}, &resp)
	if err != nil {
		return ChatMessage{}, err
	}
	msg := ChatMessage{RoomID: roomID, Message: text, SenderType: CustomerSenderType}
	if resp.Data != nil {
		msg = resp.Data.message()
		if msg.RoomID == 0 {
			msg.RoomID = roomID
		}
	}
	return msg, nil
}
