package service

import (
	"context"
	"strings"
	"time"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
	"github.com/kidandcat/tracker/internal/ws"
)

type MessageService struct {
	store Store
	hub   Broadcaster
	now   func() time.Time
}

// Send stores a message in the project's chat and pushes it to the
// project's live room.
func (s *MessageService) Send(ctx context.Context, senderID, projectID int64, content string) (*db.Message, error) {
	sender, err := s.store.GetUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	chat, err := s.store.GetChatByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errs.InvalidArgument("message content is required")
	}

	m := &db.Message{
		Content:   content,
		CreatedAt: s.now(),
		SenderID:  sender.ID,
		ChatID:    chat.ID,
	}
	if err := s.store.SaveMessage(ctx, m); err != nil {
		return nil, err
	}
	m.Sender = sender
	s.hub.Publish(projectID, ws.EventMessageNew, m)
	return m, nil
}

// ListByProject returns the project chat history, oldest first.
func (s *MessageService) ListByProject(ctx context.Context, projectID int64) ([]db.Message, error) {
	chat, err := s.store.GetChatByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessagesByChat(ctx, chat.ID)
}

func (s *MessageService) Delete(ctx context.Context, messageID, callerID int64) error {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != callerID {
		return errs.PermissionDenied("only the sender can delete message %d", messageID)
	}
	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	if chat, ok := s.chatOf(ctx, m); ok {
		s.hub.Publish(chat.ProjectID, ws.EventMessageDeleted, map[string]int64{"id": m.ID, "chatId": m.ChatID})
	}
	return nil
}

// Update replaces the content of a message. Its creation time is kept.
func (s *MessageService) Update(ctx context.Context, messageID, callerID int64, content string) (*db.Message, error) {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != callerID {
		return nil, errs.PermissionDenied("only the sender can edit message %d", messageID)
	}
	if strings.TrimSpace(content) == "" {
		return nil, errs.InvalidArgument("message content is required")
	}
	m.Content = content
	if err := s.store.SaveMessage(ctx, m); err != nil {
		return nil, err
	}
	if chat, ok := s.chatOf(ctx, m); ok {
		s.hub.Publish(chat.ProjectID, ws.EventMessageUpdated, m)
	}
	return m, nil
}

// chatOf resolves the chat, and through it the project room, of m.
func (s *MessageService) chatOf(ctx context.Context, m *db.Message) (*db.Chat, bool) {
	chat, err := s.store.GetChat(ctx, m.ChatID)
	if err != nil {
		return nil, false
	}
	return chat, true
}
