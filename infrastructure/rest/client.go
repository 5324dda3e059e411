// Package rest implements the backend's request/response contracts:
// history fetch, read acknowledgements, edit/delete submission and the
// room list. One thin typed client per concern, all JSON over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"

	"chat-sync/domain"
	apperrors "chat-sync/errors"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// messageDTO mirrors the backend's message payload.
type messageDTO struct {
	ID           int64           `json:"id"`
	RoomID       int64           `json:"room_id"`
	SenderID     int64           `json:"sender_id"`
	SenderName   string          `json:"sender_name"`
	Content      string          `json:"content"`
	CreatedAt    string          `json:"created_at"`
	ReadByOthers bool            `json:"isReadByOthers"`
	ReadByMe     bool            `json:"isRead"`
	Attachments  []attachmentDTO `json:"attachments"`
}

type attachmentDTO struct {
	FileName string `json:"fileName"`
}

type roomDTO struct {
	RoomID      int64   `json:"room_id"`
	PartnerName string  `json:"partner_name"`
	RoomName    *string `json:"room_name"`
	IsGroup     bool    `json:"is_group"`
	LastMessage string  `json:"last_message"`
	MemberIDs   []int64 `json:"member_ids"`
}

type userDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// FetchHistory retrieves the ordered backlog of a room.
func (c *Client) FetchHistory(ctx context.Context, room domain.RoomID, token string) ([]domain.Message, error) {
	endpoint := fmt.Sprintf("%s/messages?room_id=%d", c.baseURL, room)
	body, err := c.get(ctx, endpoint, token)
	if err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}

	var dtos []messageDTO
	if err = json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("history fetch: decoding response: %w", err)
	}

	messages := make([]domain.Message, 0, len(dtos))
	for _, dto := range dtos {
		m, err := toMessage(dto)
		if err != nil {
			return nil, fmt.Errorf("history fetch: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// AcknowledgeRead marks one message as read. Idempotent server-side.
func (c *Client) AcknowledgeRead(ctx context.Context, id domain.MessageID, token string) error {
	endpoint := fmt.Sprintf("%s/messages/%d/read", c.baseURL, id)
	if err := c.send(ctx, http.MethodPost, endpoint, token, nil); err != nil {
		return fmt.Errorf("read acknowledgement for %d: %w", id, err)
	}
	return nil
}

// EditMessage submits a body replacement. The confirmed effect comes back
// through the push channel as an edit event.
func (c *Client) EditMessage(ctx context.Context, id domain.MessageID, content, token string) error {
	endpoint := fmt.Sprintf("%s/messages/%d", c.baseURL, id)
	payload := map[string]string{"content": content}
	if err := c.send(ctx, http.MethodPatch, endpoint, token, payload); err != nil {
		return fmt.Errorf("edit of %d: %w", id, err)
	}
	return nil
}

// DeleteMessage submits a deletion, echoed back as a delete event.
func (c *Client) DeleteMessage(ctx context.Context, id domain.MessageID, token string) error {
	endpoint := fmt.Sprintf("%s/messages/%d", c.baseURL, id)
	if err := c.send(ctx, http.MethodDelete, endpoint, token, nil); err != nil {
		return fmt.Errorf("delete of %d: %w", id, err)
	}
	return nil
}

// ListRooms returns the user's rooms, deduplicated by identity and
// restricted to rooms that already hold a message.
func (c *Client) ListRooms(ctx context.Context, token string) ([]domain.Room, error) {
	body, err := c.get(ctx, c.baseURL+"/rooms", token)
	if err != nil {
		return nil, fmt.Errorf("room list: %w", err)
	}

	var dtos []roomDTO
	if err = json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("room list: decoding response: %w", err)
	}

	dtos = lo.UniqBy(dtos, func(dto roomDTO) int64 { return dto.RoomID })
	dtos = lo.Filter(dtos, func(dto roomDTO, _ int) bool { return dto.LastMessage != "" })
	return lo.Map(dtos, func(dto roomDTO, _ int) domain.Room { return toRoom(dto) }), nil
}

// Me resolves the authenticated user's profile.
func (c *Client) Me(ctx context.Context, token string) (domain.UserID, string, error) {
	body, err := c.get(ctx, c.baseURL+"/me", token)
	if err != nil {
		return 0, "", fmt.Errorf("me: %w", err)
	}
	var dto userDTO
	if err = json.Unmarshal(body, &dto); err != nil {
		return 0, "", fmt.Errorf("me: decoding response: %w", err)
	}
	return domain.UserID(dto.ID), dto.Username, nil
}

func (c *Client) get(ctx context.Context, endpoint, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err = statusError(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) send(ctx context.Context, method, endpoint, token string, payload any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return statusError(resp.StatusCode)
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.ErrNotAuthorized
	case code == http.StatusNotFound:
		return apperrors.ErrRoomNotFound
	default:
		return fmt.Errorf("%w: unexpected status %d", apperrors.ErrTransport, code)
	}
}

func toMessage(dto messageDTO) (domain.Message, error) {
	at, err := time.Parse(time.RFC3339, dto.CreatedAt)
	if err != nil {
		return domain.Message{}, fmt.Errorf("bad created_at %q: %v", dto.CreatedAt, err)
	}
	return domain.Message{
		ID:           domain.MessageID(dto.ID),
		Room:         domain.RoomID(dto.RoomID),
		SenderID:     domain.UserID(dto.SenderID),
		SenderName:   dto.SenderName,
		Content:      dto.Content,
		CreatedAt:    at.UTC(),
		ReadByOthers: dto.ReadByOthers,
		ReadByMe:     dto.ReadByMe,
		Attachments: lo.Map(dto.Attachments, func(a attachmentDTO, _ int) domain.Attachment {
			return domain.Attachment{FileName: a.FileName}
		}),
	}, nil
}

func toRoom(dto roomDTO) domain.Room {
	room := domain.Room{
		ID:          domain.RoomID(dto.RoomID),
		Kind:        domain.DirectRoom,
		Name:        dto.PartnerName,
		LastMessage: dto.LastMessage,
		MemberIDs: lo.Map(dto.MemberIDs, func(id int64, _ int) domain.UserID {
			return domain.UserID(id)
		}),
	}
	if dto.IsGroup {
		room.Kind = domain.GroupRoom
		if dto.RoomName != nil {
			room.Name = *dto.RoomName
		}
	}
	return room
}
