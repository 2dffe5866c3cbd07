package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/kidandcat/tracker/internal/errs"
)

func (s *Store) CreateComment(ctx context.Context, c *Comment) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *Store) GetComment(ctx context.Context, id int64) (*Comment, error) {
	var c Comment
	if err := s.db.WithContext(ctx).Preload("User").First(&c, id).Error; err != nil {
		return nil, notFound(err, "comment %d not found", id)
	}
	return &c, nil
}

func (s *Store) ListCommentsByIssue(ctx context.Context, issueID int64) ([]Comment, error) {
	var cs []Comment
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("issue_id = ?", issueID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&cs).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return cs, nil
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&Comment{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("comment %d not found", id)
	}
	return nil
}
