package service

import (
	"context"
	"strings"
	"time"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
)

type CommentService struct {
	store Store
	now   func() time.Time
}

func (s *CommentService) Create(ctx context.Context, issueID, callerID int64, content string) (*db.Comment, error) {
	if _, err := s.store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errs.InvalidArgument("comment content is required")
	}
	c := &db.Comment{
		Content:   content,
		CreatedAt: s.now(),
		UserID:    u.ID,
		IssueID:   issueID,
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	c.User = u
	return c, nil
}

func (s *CommentService) ListByIssue(ctx context.Context, issueID int64) ([]db.Comment, error) {
	if _, err := s.store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.store.ListCommentsByIssue(ctx, issueID)
}

func (s *CommentService) Delete(ctx context.Context, id, callerID int64) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != callerID {
		return errs.PermissionDenied("only the author can delete comment %d", id)
	}
	return s.store.DeleteComment(ctx, id)
}
