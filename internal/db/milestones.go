package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/kidandcat/tracker/internal/errs"
)

func (s *Store) GetMilestone(ctx context.Context, id int64) (*Milestone, error) {
	var m Milestone
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "milestone %d not found", id)
	}
	return &m, nil
}

func (s *Store) ListMilestonesByProject(ctx context.Context, projectID int64) ([]Milestone, error) {
	var ms []Milestone
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return ms, nil
}

func (s *Store) SaveMilestone(ctx context.Context, m *Milestone) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error; err != nil {
		return fmt.Errorf("save milestone: %w", err)
	}
	return nil
}

func (s *Store) DeleteMilestone(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&Milestone{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete milestone: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("milestone %d not found", id)
	}
	return nil
}
