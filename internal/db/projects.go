package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kidandcat/tracker/internal/errs"
)

// CreateProject inserts p together with the owner's OWNER role and the
// project chat, with the owner as its first participant.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		role := ProjectRole{ProjectID: p.ID, UserID: p.OwnerID, Role: RoleOwner}
		if err := tx.Omit(clause.Associations).Create(&role).Error; err != nil {
			return fmt.Errorf("insert owner role: %w", err)
		}
		chat := Chat{Name: p.Name, ProjectID: p.ID}
		if err := tx.Omit(clause.Associations).Create(&chat).Error; err != nil {
			return fmt.Errorf("insert chat: %w", err)
		}
		if err := tx.Exec("INSERT INTO chat_users (chat_id, user_id) VALUES (?, ?)", chat.ID, p.OwnerID).Error; err != nil {
			return fmt.Errorf("insert chat participant: %w", err)
		}
		p.Roles = []ProjectRole{role}
		return nil
	})
}

func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("Roles", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Preload("Roles.User").
		First(&p, id).Error
	if err != nil {
		return nil, notFound(err, "project %d not found", id)
	}
	return &p, nil
}

// ListProjectsForUser returns the projects userID holds any role on.
func (s *Store) ListProjectsForUser(ctx context.Context, userID int64) ([]Project, error) {
	var projects []Project
	err := s.db.WithContext(ctx).
		Joins("JOIN project_roles ON project_roles.project_id = projects.id").
		Where("project_roles.user_id = ?", userID).
		Order("projects.id ASC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *Store) GetChatByProject(ctx context.Context, projectID int64) (*Chat, error) {
	var c Chat
	err := s.db.WithContext(ctx).Preload("Participants").Where("project_id = ?", projectID).First(&c).Error
	if err != nil {
		return nil, notFound(err, "chat not found for project %d", projectID)
	}
	return &c, nil
}

func (s *Store) GetChat(ctx context.Context, id int64) (*Chat, error) {
	var c Chat
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "chat %d not found", id)
	}
	return &c, nil
}

// SetRole grants role to userID on the project, replacing any previous
// role. New members are added to the project chat.
func (s *Store) SetRole(ctx context.Context, projectID, userID int64, role Role) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ProjectRole
		err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Update("role", role).Error; err != nil {
				return fmt.Errorf("update role: %w", err)
			}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("query role: %w", err)
		}

		pr := ProjectRole{ProjectID: projectID, UserID: userID, Role: role}
		if err := tx.Omit(clause.Associations).Create(&pr).Error; err != nil {
			return fmt.Errorf("insert role: %w", err)
		}

		var chat Chat
		if err := tx.Where("project_id = ?", projectID).First(&chat).Error; err != nil {
			return notFound(err, "chat not found for project %d", projectID)
		}
		var n int64
		if err := tx.Table("chat_users").Where("chat_id = ? AND user_id = ?", chat.ID, userID).Count(&n).Error; err != nil {
			return fmt.Errorf("count chat participants: %w", err)
		}
		if n == 0 {
			if err := tx.Exec("INSERT INTO chat_users (chat_id, user_id) VALUES (?, ?)", chat.ID, userID).Error; err != nil {
				return fmt.Errorf("insert chat participant: %w", err)
			}
		}
		return nil
	})
}

// RemoveRole drops userID from the project and its chat.
func (s *Store) RemoveRole(ctx context.Context, projectID, userID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("project_id = ? AND user_id = ?", projectID, userID).Delete(&ProjectRole{})
		if res.Error != nil {
			return fmt.Errorf("delete role: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.NotFound("user %d is not a member of project %d", userID, projectID)
		}
		var chatIDs []int64
		if err := tx.Model(&Chat{}).Where("project_id = ?", projectID).Pluck("id", &chatIDs).Error; err != nil {
			return fmt.Errorf("list chats: %w", err)
		}
		if len(chatIDs) == 0 {
			return nil
		}
		if err := tx.Exec("DELETE FROM chat_users WHERE user_id = ? AND chat_id IN ?", userID, chatIDs).Error; err != nil {
			return fmt.Errorf("delete chat participant: %w", err)
		}
		return nil
	})
}

// DeleteProject removes the project and everything hanging off it. The
// removed attachments are returned so their blobs can be cleaned up.
func (s *Store) DeleteProject(ctx context.Context, id int64) ([]Attachment, error) {
	var attachments []Attachment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var issueIDs []int64
		if err := tx.Model(&Issue{}).Where("project_id = ?", id).Pluck("id", &issueIDs).Error; err != nil {
			return fmt.Errorf("list issues: %w", err)
		}
		if len(issueIDs) > 0 {
			var err error
			if attachments, err = deleteIssueChildren(tx, issueIDs); err != nil {
				return err
			}
			if err := tx.Where("project_id = ?", id).Delete(&Issue{}).Error; err != nil {
				return fmt.Errorf("delete issues: %w", err)
			}
		}
		if err := tx.Where("project_id = ?", id).Delete(&Milestone{}).Error; err != nil {
			return fmt.Errorf("delete milestones: %w", err)
		}

		var chatIDs []int64
		if err := tx.Model(&Chat{}).Where("project_id = ?", id).Pluck("id", &chatIDs).Error; err != nil {
			return fmt.Errorf("list chats: %w", err)
		}
		if len(chatIDs) > 0 {
			if err := tx.Where("chat_id IN ?", chatIDs).Delete(&Message{}).Error; err != nil {
				return fmt.Errorf("delete messages: %w", err)
			}
			if err := tx.Exec("DELETE FROM chat_users WHERE chat_id IN ?", chatIDs).Error; err != nil {
				return fmt.Errorf("delete chat participants: %w", err)
			}
			if err := tx.Where("id IN ?", chatIDs).Delete(&Chat{}).Error; err != nil {
				return fmt.Errorf("delete chat: %w", err)
			}
		}

		if err := tx.Where("project_id = ?", id).Delete(&ProjectRole{}).Error; err != nil {
			return fmt.Errorf("delete roles: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&Invitation{}).Error; err != nil {
			return fmt.Errorf("delete invitations: %w", err)
		}
		res := tx.Delete(&Project{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete project: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.NotFound("project %d not found", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

// deleteIssueChildren removes comments, attachments and tag links of the
// given issues and returns the removed attachments.
func deleteIssueChildren(tx *gorm.DB, issueIDs []int64) ([]Attachment, error) {
	var attachments []Attachment
	if err := tx.Where("issue_id IN ?", issueIDs).Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	if err := tx.Where("issue_id IN ?", issueIDs).Delete(&Comment{}).Error; err != nil {
		return nil, fmt.Errorf("delete comments: %w", err)
	}
	if err := tx.Where("issue_id IN ?", issueIDs).Delete(&Attachment{}).Error; err != nil {
		return nil, fmt.Errorf("delete attachments: %w", err)
	}
	if err := tx.Exec("DELETE FROM issue_tags WHERE issue_id IN ?", issueIDs).Error; err != nil {
		return nil, fmt.Errorf("delete issue tags: %w", err)
	}
	return attachments, nil
}
