package db

import (
	"context"
	"fmt"

	"github.com/kidandcat/tracker/internal/errs"
)

func (s *Store) CreateAttachment(ctx context.Context, a *Attachment) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *Store) GetAttachment(ctx context.Context, id int64) (*Attachment, error) {
	var a Attachment
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err, "attachment %d not found", id)
	}
	return &a, nil
}

func (s *Store) ListAttachmentsByIssue(ctx context.Context, issueID int64) ([]Attachment, error) {
	var as []Attachment
	if err := s.db.WithContext(ctx).Where("issue_id = ?", issueID).Order("id ASC").Find(&as).Error; err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return as, nil
}

func (s *Store) DeleteAttachment(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&Attachment{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete attachment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("attachment %d not found", id)
	}
	return nil
}
