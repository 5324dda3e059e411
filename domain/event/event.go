// Package event defines the push channel's event union.
// Every inbound frame decodes into exactly one of these variants;
// consumers switch over them exhaustively.
package event

import (
	"chat-sync/domain"
)

// PushEvent is the sealed union of everything the push channel delivers.
// Delivery is at-least-once and unordered; every variant must therefore
// be safe to apply more than once and in any order.
type PushEvent interface {
	pushEvent()
}

// MessageReceived carries a server-confirmed message, either from another
// member or the echo of a local send.
type MessageReceived struct {
	Message domain.Message
}

// ReadReceipt signals that a recipient has read the addressed message.
type ReadReceipt struct {
	ID domain.MessageID
}

// MessageEdited replaces the body of the addressed message.
type MessageEdited struct {
	ID      domain.MessageID
	Content string
}

// MessageDeleted removes the addressed message from the timeline.
type MessageDeleted struct {
	ID domain.MessageID
}

func (MessageReceived) pushEvent() {}
func (ReadReceipt) pushEvent()     {}
func (MessageEdited) pushEvent()   {}
func (MessageDeleted) pushEvent()  {}
