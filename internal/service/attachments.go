package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
)

type AttachmentService struct {
	store Store
	blobs Blobs
	log   *slog.Logger
	now   func() time.Time
}

func (s *AttachmentService) Upload(ctx context.Context, issueID, callerID int64, name, contentType string, r io.Reader) (*db.Attachment, error) {
	if _, err := s.store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, callerID); err != nil {
		return nil, err
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return nil, errs.InvalidArgument("file name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	rel, size, err := s.blobs.Save(issueID, name, r)
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	a := &db.Attachment{
		IssueID:    issueID,
		UploaderID: callerID,
		FileName:   name,
		FileType:   contentType,
		FilePath:   rel,
		FileSize:   size,
		UploadDate: s.now(),
	}
	if err := s.store.CreateAttachment(ctx, a); err != nil {
		removeBlobs(s.blobs, s.log, []db.Attachment{*a})
		return nil, err
	}
	return a, nil
}

func (s *AttachmentService) ListByIssue(ctx context.Context, issueID int64) ([]db.Attachment, error) {
	if _, err := s.store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.store.ListAttachmentsByIssue(ctx, issueID)
}

// Open returns the attachment metadata and its contents. The caller
// closes the file.
func (s *AttachmentService) Open(ctx context.Context, id int64) (*db.Attachment, *os.File, error) {
	a, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.blobs.Open(a.FilePath)
	if err != nil {
		return nil, nil, errs.NotFound("contents of attachment %d are missing", id)
	}
	return a, f, nil
}

// Delete removes an attachment. The uploader and the project's owners
// and administrators may delete.
func (s *AttachmentService) Delete(ctx context.Context, id, callerID int64) error {
	a, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	if a.UploaderID != callerID {
		issue, err := s.store.GetIssue(ctx, a.IssueID)
		if err != nil {
			return err
		}
		p, err := s.store.GetProject(ctx, issue.ProjectID)
		if err != nil {
			return err
		}
		if !HasManagementPermission(p, callerID) {
			return errs.PermissionDenied("no permission to delete attachment %d", id)
		}
	}
	if err := s.store.DeleteAttachment(ctx, id); err != nil {
		return err
	}
	removeBlobs(s.blobs, s.log, []db.Attachment{*a})
	return nil
}
