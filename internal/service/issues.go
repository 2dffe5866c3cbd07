package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
)

// IssueRequest carries issue fields from a client. Nil fields are left
// as they are (or defaulted on create).
//
// The milestone has three states: MilestoneID set attaches that
// milestone, nil with KeepMilestone leaves the current one, and nil
// without KeepMilestone clears it.
type IssueRequest struct {
	ProjectID     int64
	Title         *string
	Description   *string
	Status        *string
	Priority      *string
	Type          *string
	DueDate       *time.Time
	MilestoneID   *int64
	KeepMilestone bool
	Tags          []string // nil leaves tags untouched
}

type IssueService struct {
	store Store
	blobs Blobs
	log   *slog.Logger
	now   func() time.Time
}

func (s *IssueService) HasManagementPermission(p *db.Project, userID int64) bool {
	return HasManagementPermission(p, userID)
}

func (s *IssueService) Get(ctx context.Context, id int64) (*db.Issue, error) {
	return s.store.GetIssue(ctx, id)
}

func (s *IssueService) ListByProject(ctx context.Context, projectID int64) ([]db.Issue, error) {
	return s.store.ListIssuesByProject(ctx, projectID)
}

func (s *IssueService) Create(ctx context.Context, req IssueRequest, creatorID int64) (*db.Issue, error) {
	p, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if req.DueDate != nil && req.DueDate.Before(s.now()) {
		return nil, errs.InvalidArgument("due date cannot be in the past")
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, errs.InvalidArgument("title is required")
	}
	if _, err := s.store.GetUser(ctx, creatorID); err != nil {
		return nil, err
	}

	issue := &db.Issue{
		ProjectID: p.ID,
		CreatorID: creatorID,
		Status:    db.StatusTodo,
		Priority:  db.PriorityLow,
		Type:      db.TypeTask,
	}
	if err := mergeFields(issue, req); err != nil {
		return nil, err
	}
	if req.MilestoneID != nil {
		if err := s.attachMilestone(ctx, issue, *req.MilestoneID); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveIssue(ctx, issue); err != nil {
		return nil, err
	}
	return s.store.GetIssue(ctx, issue.ID)
}

func (s *IssueService) UpdateStatus(ctx context.Context, id int64, status string) (*db.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := db.ParseIssueStatus(status)
	if err != nil {
		return nil, err
	}
	issue.Status = st
	if err := s.store.SaveIssue(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

func (s *IssueService) Assign(ctx context.Context, id, userID int64) (*db.Issue, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	issue.AssigneeID = &u.ID
	issue.Assignee = u
	if err := s.store.SaveIssue(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// Delete removes the issue with its comments, attachments and tag links.
// The caller needs a management role on the issue's project.
func (s *IssueService) Delete(ctx context.Context, id, callerID int64) error {
	if _, err := s.store.GetUser(ctx, callerID); err != nil {
		return err
	}
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	p, err := s.store.GetProject(ctx, issue.ProjectID)
	if err != nil {
		return err
	}
	if !HasManagementPermission(p, callerID) {
		return errs.PermissionDenied("no permission to delete issue %d", id)
	}
	removed, err := s.store.DeleteIssue(ctx, id)
	if err != nil {
		return err
	}
	removeBlobs(s.blobs, s.log, removed)
	return nil
}

// UpdateFull merges req into the issue. Owners, administrators and the
// current assignee may update. The due date is not checked against now.
func (s *IssueService) UpdateFull(ctx context.Context, id int64, req IssueRequest, callerID int64) (*db.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, callerID); err != nil {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, issue.ProjectID)
	if err != nil {
		return nil, err
	}
	isAssignee := issue.AssigneeID != nil && *issue.AssigneeID == callerID
	if !HasManagementPermission(p, callerID) && !isAssignee {
		return nil, errs.PermissionDenied("no permission to edit issue %d", id)
	}

	if err := mergeFields(issue, req); err != nil {
		return nil, err
	}
	switch {
	case req.MilestoneID != nil:
		if err := s.attachMilestone(ctx, issue, *req.MilestoneID); err != nil {
			return nil, err
		}
	case !req.KeepMilestone:
		issue.MilestoneID = nil
	}

	if err := s.store.SaveIssue(ctx, issue); err != nil {
		return nil, err
	}
	return s.store.GetIssue(ctx, issue.ID)
}

func (s *IssueService) attachMilestone(ctx context.Context, issue *db.Issue, milestoneID int64) error {
	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return err
	}
	if m.ProjectID != issue.ProjectID {
		return errs.InvalidArgument("milestone belongs to a different project")
	}
	issue.MilestoneID = &m.ID
	return nil
}

// mergeFields copies every non-nil scalar field of req onto issue.
func mergeFields(issue *db.Issue, req IssueRequest) error {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return errs.InvalidArgument("title cannot be empty")
		}
		issue.Title = title
	}
	if req.Description != nil {
		issue.Description = *req.Description
	}
	if req.Status != nil {
		st, err := db.ParseIssueStatus(*req.Status)
		if err != nil {
			return err
		}
		issue.Status = st
	}
	if req.Priority != nil {
		pr, err := db.ParseIssuePriority(*req.Priority)
		if err != nil {
			return err
		}
		issue.Priority = pr
	}
	if req.Type != nil {
		t, err := db.ParseIssueType(*req.Type)
		if err != nil {
			return err
		}
		issue.Type = t
	}
	if req.DueDate != nil {
		d := req.DueDate.UTC()
		issue.DueDate = &d
	}
	if req.Tags != nil {
		tags := make([]db.Tag, 0, len(req.Tags))
		for _, name := range req.Tags {
			name = strings.TrimSpace(name)
			if name == "" {
				return errs.InvalidArgument("tag name cannot be empty")
			}
			tags = append(tags, db.Tag{Name: name})
		}
		issue.Tags = tags
	}
	return nil
}
