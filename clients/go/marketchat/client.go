// Package marketchat provides a Go client for the marketplace chat service.
package marketchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client is a chat service API client. Token is the gateway-issued user JWT.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new chat client.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Room mirrors the server's room payload.
type Room struct {
	ID          string `json:"id"`
	BuyerID     string `json:"buyer_id"`
	SellerID    string `json:"seller_id"`
	OrderNumber string `json:"order_number,omitempty"`
	PostID      string `json:"post_id,omitempty"`
}

// Profile mirrors the server's counterparty payload.
type Profile struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// Message mirrors the server's message payload.
type Message struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	ClientID  string `json:"client_id,omitempty"`
	IsRead    bool   `json:"is_read"`
	Timestamp int64  `json:"ts"`
	Status    string `json:"status,omitempty"`
}

// Event mirrors the feed's event payload.
type Event struct {
	Kind    string  `json:"kind"`
	Message Message `json:"message,omitempty"`
	State   string  `json:"state,omitempty"`
}

// OpenRoomResponse is the room-open response.
type OpenRoomResponse struct {
	Room        Room      `json:"room"`
	OtherParty  Profile   `json:"other_party"`
	Messages    []Message `json:"messages"`
	UnreadCount int       `json:"unread_count"`
	ConnState   string    `json:"conn_state"`
}

// OpenRoom opens (or re-uses) the conversation for an order or listing.
func (c *Client) OpenRoom(ctx context.Context, orderNumber, postID string) (*OpenRoomResponse, error) {
	body := map[string]string{}
	if orderNumber != "" {
		body["order_number"] = orderNumber
	}
	if postID != "" {
		body["post_id"] = postID
	}

	var resp OpenRoomResponse
	if err := c.do(ctx, http.MethodPost, "/rooms/open", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Send posts a message into an open room.
func (c *Client) Send(ctx context.Context, roomID, content string) (*Message, error) {
	var msg Message
	err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/messages", map[string]string{"content": content}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks the room visible; the unread counter resets.
func (c *Client) MarkRead(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/read", nil, nil)
}

// Unread returns the badge count for a room.
func (c *Client) Unread(ctx context.Context, roomID string) (int, error) {
	var resp struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms/"+roomID+"/unread", nil, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// CloseRoom tears the room session down.
func (c *Client) CloseRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/close", nil, nil)
}

// Feed connects to the room's event stream and invokes handler for every
// event until ctx is cancelled or the stream ends.
func (c *Client) Feed(ctx context.Context, roomID string, handler func(Event)) error {
	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1) +
		"/rooms/" + roomID + "/feed?token=" + c.Token

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		handler(ev)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (%d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
