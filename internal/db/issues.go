package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kidandcat/tracker/internal/errs"
)

func (s *Store) issues(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Assignee").Preload("Tags", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("tags.name ASC")
	})
}

func (s *Store) GetIssue(ctx context.Context, id int64) (*Issue, error) {
	var issue Issue
	if err := s.issues(ctx).First(&issue, id).Error; err != nil {
		return nil, notFound(err, "issue %d not found", id)
	}
	return &issue, nil
}

func (s *Store) ListIssuesByProject(ctx context.Context, projectID int64) ([]Issue, error) {
	var issues []Issue
	if err := s.issues(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

func (s *Store) ListIssuesByMilestone(ctx context.Context, milestoneID int64) ([]Issue, error) {
	var issues []Issue
	if err := s.issues(ctx).Where("milestone_id = ?", milestoneID).Order("id ASC").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("list milestone issues: %w", err)
	}
	return issues, nil
}

// SaveIssue inserts or updates the issue row and makes its tag links
// match issue.Tags. Tags without an id are created by name.
func (s *Store) SaveIssue(ctx context.Context, issue *Issue) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(issue).Error; err != nil {
			return fmt.Errorf("save issue: %w", err)
		}
		for i := range issue.Tags {
			t := &issue.Tags[i]
			if t.ID != 0 {
				continue
			}
			t.Name = strings.TrimSpace(t.Name)
			if err := tx.Where(Tag{Name: t.Name}).FirstOrCreate(t).Error; err != nil {
				return fmt.Errorf("save tag %q: %w", t.Name, err)
			}
		}
		if err := tx.Exec("DELETE FROM issue_tags WHERE issue_id = ?", issue.ID).Error; err != nil {
			return fmt.Errorf("clear issue tags: %w", err)
		}
		seen := make(map[int64]bool, len(issue.Tags))
		for _, t := range issue.Tags {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			if err := tx.Exec("INSERT INTO issue_tags (issue_id, tag_id) VALUES (?, ?)", issue.ID, t.ID).Error; err != nil {
				return fmt.Errorf("link tag %d: %w", t.ID, err)
			}
		}
		return nil
	})
}

// DeleteIssue removes the issue with its comments, attachments and tag
// links. The removed attachments are returned for blob cleanup.
func (s *Store) DeleteIssue(ctx context.Context, id int64) ([]Attachment, error) {
	var attachments []Attachment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if attachments, err = deleteIssueChildren(tx, []int64{id}); err != nil {
			return err
		}
		res := tx.Delete(&Issue{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete issue: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.NotFound("issue %d not found", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachments, nil
}
