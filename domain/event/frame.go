package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"chat-sync/domain"
	apperrors "chat-sync/errors"
)

// Frame types used by the backend over the websocket.
const (
	TypeMessage = "message"
	TypeRead    = "read"
	TypeEdit    = "edit"
	TypeDelete  = "delete"
)

var validate = validator.New()

// frame mirrors the backend's wire shape. A single struct covers all
// variants; Type selects which fields are meaningful.
type frame struct {
	Type        string          `json:"type" validate:"required,oneof=message read edit delete"`
	ID          int64           `json:"id" validate:"required,gt=0"`
	RoomID      int64           `json:"room_id"`
	SenderID    int64           `json:"sender_id"`
	SenderName  string          `json:"sender_name"`
	Content     string          `json:"content"`
	CreatedAt   string          `json:"created_at"`
	Attachments []attachmentDTO `json:"attachments"`
}

type attachmentDTO struct {
	FileName string `json:"fileName"`
}

// sendFrame is the outbound shape of a local send. The server assigns
// identity and timestamp before echoing the message back.
type sendFrame struct {
	RoomID      int64           `json:"room_id"`
	SenderID    int64           `json:"sender_id"`
	Content     string          `json:"content"`
	Attachments []attachmentDTO `json:"attachments,omitempty"`
}

// Decode turns a raw frame into its PushEvent variant.
// Undecodable frames return ErrMalformedFrame; the caller drops them.
func Decode(data []byte) (PushEvent, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedFrame, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedFrame, err)
	}

	switch f.Type {
	case TypeMessage:
		at, err := time.Parse(time.RFC3339, f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad created_at %q", apperrors.ErrMalformedFrame, f.CreatedAt)
		}
		return MessageReceived{Message: domain.Message{
			ID:          domain.MessageID(f.ID),
			Room:        domain.RoomID(f.RoomID),
			SenderID:    domain.UserID(f.SenderID),
			SenderName:  f.SenderName,
			Content:     f.Content,
			Attachments: toAttachments(f.Attachments),
			CreatedAt:   at.UTC(),
		}}, nil
	case TypeRead:
		return ReadReceipt{ID: domain.MessageID(f.ID)}, nil
	case TypeEdit:
		return MessageEdited{ID: domain.MessageID(f.ID), Content: f.Content}, nil
	case TypeDelete:
		return MessageDeleted{ID: domain.MessageID(f.ID)}, nil
	}
	// Unreachable: validate restricts Type to the four known values.
	return nil, apperrors.ErrMalformedFrame
}

// EncodeSend builds the outbound frame for an optimistic local send.
func EncodeSend(m domain.Message) any {
	return sendFrame{
		RoomID:   int64(m.Room),
		SenderID: int64(m.SenderID),
		Content:  m.Content,
		Attachments: lo.Map(m.Attachments, func(a domain.Attachment, _ int) attachmentDTO {
			return attachmentDTO{FileName: a.FileName}
		}),
	}
}

func toAttachments(dtos []attachmentDTO) []domain.Attachment {
	if len(dtos) == 0 {
		return nil
	}
	return lo.Map(dtos, func(d attachmentDTO, _ int) domain.Attachment {
		return domain.Attachment{FileName: d.FileName}
	})
}
