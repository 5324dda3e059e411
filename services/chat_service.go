// Package services exposes the engine to the presentation layer.
package services

import (
	"context"

	"chat-sync/contract"
	"chat-sync/conversation"
	"chat-sync/domain"
	"chat-sync/runtime"
)

type IChatService interface {
	ActivateRoom(ctx context.Context, room domain.RoomID) error
	Send(content string, attachments []domain.Attachment) error
	Edit(ctx context.Context, id domain.MessageID, content string) error
	Delete(ctx context.Context, id domain.MessageID) error
	CurrentView() []domain.Message
	LoadState() (conversation.LoadState, error)
	Subscribe(fn func())
	Rooms(ctx context.Context) ([]domain.Room, error)
}

type ChatService struct {
	controller *runtime.Controller
	submitter  contract.MessageSubmitter
	lister     contract.RoomLister
	identity   domain.Identity
}

func NewChatService(controller *runtime.Controller, submitter contract.MessageSubmitter,
	lister contract.RoomLister, identity domain.Identity) *ChatService {
	return &ChatService{
		controller: controller,
		submitter:  submitter,
		lister:     lister,
		identity:   identity,
	}
}

func (s *ChatService) ActivateRoom(ctx context.Context, room domain.RoomID) error {
	return s.controller.ActivateRoom(ctx, room)
}

func (s *ChatService) Send(content string, attachments []domain.Attachment) error {
	return s.controller.Send(content, attachments)
}

// Edit applies the new body optimistically and submits it. The push
// channel echoes the edit back; the store treats the echo as a no-op.
func (s *ChatService) Edit(ctx context.Context, id domain.MessageID, content string) error {
	if store := s.controller.Store(); store != nil {
		store.ApplyEdit(id, content)
	}
	return s.submitter.EditMessage(ctx, id, content, s.identity.Token)
}

func (s *ChatService) Delete(ctx context.Context, id domain.MessageID) error {
	if store := s.controller.Store(); store != nil {
		store.ApplyDelete(id)
	}
	return s.submitter.DeleteMessage(ctx, id, s.identity.Token)
}

func (s *ChatService) CurrentView() []domain.Message {
	store := s.controller.Store()
	if store == nil {
		return nil
	}
	return store.CurrentView()
}

func (s *ChatService) LoadState() (conversation.LoadState, error) {
	store := s.controller.Store()
	if store == nil {
		return conversation.LoadPending, nil
	}
	return store.State()
}

func (s *ChatService) Subscribe(fn func()) {
	s.controller.RegisterObserver(fn)
}

func (s *ChatService) Rooms(ctx context.Context) ([]domain.Room, error) {
	return s.lister.ListRooms(ctx, s.identity.Token)
}
