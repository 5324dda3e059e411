// Package domain contains core concepts of the chat client.
// This file defines Message entities and related rules.
// Messages carry no transport or rendering concerns.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageID is the server-assigned identity of a message.
// It is zero until the server has acknowledged the message.
type MessageID int64

// Message represents one entry of a room timeline.
//
// A locally sent message starts as a placeholder: ID is zero, ClientKey
// identifies it until the server echo carries the real ID, and Pending
// stays true until reconciliation.
type Message struct {
	ID           MessageID
	ClientKey    uuid.UUID // local identity of a not-yet-confirmed send
	Room         RoomID
	SenderID     UserID
	SenderName   string
	Content      string
	Attachments  []Attachment
	CreatedAt    time.Time
	ReadByOthers bool
	ReadByMe     bool // derived locally, never transmitted
	Pending      bool
}

// Attachment is a reference only; bytes live in the content cache.
type Attachment struct {
	FileName string
}

// Confirmed reports whether the server has assigned an identity.
func (m Message) Confirmed() bool {
	return m.ID != 0
}

// NewPlaceholder builds the optimistic entry appended before the server
// acknowledges a local send.
func NewPlaceholder(room RoomID, sender UserID, senderName, content string, attachments []Attachment) Message {
	return Message{
		ClientKey:   uuid.New(),
		Room:        room,
		SenderID:    sender,
		SenderName:  senderName,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
		Pending:     true,
	}
}
