package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/kidandcat/tracker/internal/errs"
)

func (s *Store) GetMessage(ctx context.Context, id int64) (*Message, error) {
	var m Message
	if err := s.db.WithContext(ctx).Preload("Sender").First(&m, id).Error; err != nil {
		return nil, notFound(err, "message %d not found", id)
	}
	return &m, nil
}

// ListMessagesByChat returns the chat history oldest first. Messages
// sharing a timestamp keep insertion order.
func (s *Store) ListMessagesByChat(ctx context.Context, chatID int64) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *Store) SaveMessage(ctx context.Context, m *Message) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error; err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&Message{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("message %d not found", id)
	}
	return nil
}
