package service

import (
	"context"
	"strings"
	"time"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
)

type MilestoneService struct {
	store Store
	now   func() time.Time
}

func (s *MilestoneService) Create(ctx context.Context, m db.Milestone, projectID, callerID int64) (*db.Milestone, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, callerID); err != nil {
		return nil, err
	}
	if p.OwnerID != callerID {
		return nil, errs.PermissionDenied("only the project owner can create milestones")
	}
	if err := s.validate(&m); err != nil {
		return nil, err
	}

	m.ID = 0
	m.ProjectID = p.ID
	if err := s.store.SaveMilestone(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MilestoneService) Get(ctx context.Context, id int64) (*db.Milestone, error) {
	return s.store.GetMilestone(ctx, id)
}

// ListByProject returns the project's milestones with their progress.
func (s *MilestoneService) ListByProject(ctx context.Context, projectID int64) ([]db.MilestoneProgress, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	ms, err := s.store.ListMilestonesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]db.MilestoneProgress, 0, len(ms))
	for _, m := range ms {
		issues, err := s.store.ListIssuesByMilestone(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Progress(m, issues))
	}
	return out, nil
}

// Progress counts DONE issues against all issues of m.
func Progress(m db.Milestone, issues []db.Issue) db.MilestoneProgress {
	p := db.MilestoneProgress{Milestone: m, TotalIssues: len(issues)}
	for _, is := range issues {
		if is.Status == db.StatusDone {
			p.CompletedIssues++
		}
	}
	if p.TotalIssues > 0 {
		p.CompletionPercentage = float64(p.CompletedIssues) / float64(p.TotalIssues) * 100
	}
	return p
}

// Update replaces name, description, dates and status with data.
func (s *MilestoneService) Update(ctx context.Context, id int64, data db.Milestone) (*db.Milestone, error) {
	m, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&data); err != nil {
		return nil, err
	}
	m.Name = data.Name
	m.Description = data.Description
	m.StartDate = data.StartDate
	m.EndDate = data.EndDate
	m.Status = data.Status
	if err := s.store.SaveMilestone(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete detaches every issue from the milestone, then removes it. Only
// the project owner may delete.
func (s *MilestoneService) Delete(ctx context.Context, id, callerID int64) error {
	m, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.store.GetUser(ctx, callerID); err != nil {
		return err
	}
	p, err := s.store.GetProject(ctx, m.ProjectID)
	if err != nil {
		return err
	}
	if p.OwnerID != callerID {
		return errs.PermissionDenied("only the project owner can delete milestones")
	}

	issues, err := s.store.ListIssuesByMilestone(ctx, id)
	if err != nil {
		return err
	}
	for i := range issues {
		issues[i].MilestoneID = nil
		if err := s.store.SaveIssue(ctx, &issues[i]); err != nil {
			return err
		}
	}
	return s.store.DeleteMilestone(ctx, id)
}

func (s *MilestoneService) AddIssue(ctx context.Context, milestoneID, issueID int64) error {
	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return err
	}
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	if issue.ProjectID != m.ProjectID {
		return errs.InvalidArgument("issue does not belong to the milestone's project")
	}
	issue.MilestoneID = &m.ID
	return s.store.SaveIssue(ctx, issue)
}

func (s *MilestoneService) RemoveIssue(ctx context.Context, milestoneID, issueID int64) error {
	if _, err := s.store.GetMilestone(ctx, milestoneID); err != nil {
		return err
	}
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	issue.MilestoneID = nil
	return s.store.SaveIssue(ctx, issue)
}

// validate normalizes m and rejects dates before today. An empty status
// means PLANNED.
func (s *MilestoneService) validate(m *db.Milestone) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return errs.InvalidArgument("milestone name is required")
	}
	if m.Status == "" {
		m.Status = db.MilestonePlanned
	} else {
		st, err := db.ParseMilestoneStatus(string(m.Status))
		if err != nil {
			return err
		}
		m.Status = st
	}

	today := truncateDay(s.now())
	if m.StartDate != nil {
		d := truncateDay(*m.StartDate)
		if d.Before(today) {
			return errs.InvalidArgument("milestone start date cannot be in the past")
		}
		m.StartDate = &d
	}
	if m.EndDate != nil {
		d := truncateDay(*m.EndDate)
		if d.Before(today) {
			return errs.InvalidArgument("milestone end date cannot be in the past")
		}
		m.EndDate = &d
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
