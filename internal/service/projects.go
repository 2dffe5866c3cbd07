package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
)

const invitationTTL = 7 * 24 * time.Hour

type ProjectService struct {
	store     Store
	blobs     Blobs
	mailer    Mailer
	inviteURL string
	log       *slog.Logger
	now       func() time.Time
}

// HasManagementPermission reports whether userID is an OWNER or
// ADMINISTRATOR of p. p.Roles must be loaded.
func HasManagementPermission(p *db.Project, userID int64) bool {
	switch p.RoleOf(userID) {
	case db.RoleOwner, db.RoleAdministrator:
		return true
	}
	return false
}

// IsMember reports whether userID holds any role on p.
func IsMember(p *db.Project, userID int64) bool {
	return p.RoleOf(userID) != ""
}

func (s *ProjectService) Create(ctx context.Context, name, description string, ownerID int64) (*db.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.InvalidArgument("project name is required")
	}
	if _, err := s.store.GetUser(ctx, ownerID); err != nil {
		return nil, err
	}
	p := &db.Project{Name: name, Description: description, OwnerID: ownerID}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, p.ID)
}

func (s *ProjectService) Get(ctx context.Context, id int64) (*db.Project, error) {
	return s.store.GetProject(ctx, id)
}

func (s *ProjectService) ListForUser(ctx context.Context, userID int64) ([]db.Project, error) {
	return s.store.ListProjectsForUser(ctx, userID)
}

func (s *ProjectService) GetChat(ctx context.Context, projectID int64) (*db.Chat, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.GetChatByProject(ctx, projectID)
}

// Delete removes the project and all of its issues, milestones, chat
// history, roles and invitations. Only the owner may do it.
func (s *ProjectService) Delete(ctx context.Context, id, callerID int64) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != callerID {
		return errs.PermissionDenied("only the project owner can delete project %d", id)
	}
	removed, err := s.store.DeleteProject(ctx, id)
	if err != nil {
		return err
	}
	removeBlobs(s.blobs, s.log, removed)
	return nil
}

// SetRole grants role to userID. Only the owner may change roles, and
// the owner's own role is fixed.
func (s *ProjectService) SetRole(ctx context.Context, projectID, callerID, userID int64, role string) error {
	r, err := db.ParseRole(role)
	if err != nil {
		return err
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.OwnerID != callerID {
		return errs.PermissionDenied("only the project owner can change roles")
	}
	if userID == p.OwnerID {
		return errs.InvalidArgument("the owner's role cannot be changed")
	}
	if r == db.RoleOwner {
		return errs.InvalidArgument("a project has exactly one owner")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.store.SetRole(ctx, projectID, userID, r)
}

func (s *ProjectService) RemoveMember(ctx context.Context, projectID, callerID, userID int64) error {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.OwnerID != callerID {
		return errs.PermissionDenied("only the project owner can remove members")
	}
	if userID == p.OwnerID {
		return errs.InvalidArgument("the owner cannot be removed")
	}
	return s.store.RemoveRole(ctx, projectID, userID)
}

// Invite records an invitation for email and mails the accept link.
func (s *ProjectService) Invite(ctx context.Context, projectID, callerID int64, email string) (*db.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errs.InvalidArgument("invalid email %q", email)
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !HasManagementPermission(p, callerID) {
		return nil, errs.PermissionDenied("only owners and administrators can invite")
	}

	inv := &db.Invitation{
		Token:     uuid.NewString(),
		Email:     email,
		ProjectID: p.ID,
		CreatedAt: s.now(),
	}

	// Mail first: a failed delivery must not leave a live token behind.
	sep := "?"
	if strings.Contains(s.inviteURL, "?") {
		sep = "&"
	}
	link := s.inviteURL + sep + "token=" + url.QueryEscape(inv.Token)
	if s.mailer != nil {
		if err := s.mailer.SendInvitation(ctx, email, p.Name, link); err != nil {
			return nil, fmt.Errorf("send invitation: %w", err)
		}
	}

	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// AcceptInvitation joins callerID to the invited project as a MEMBER. A
// caller who already holds a role keeps it.
func (s *ProjectService) AcceptInvitation(ctx context.Context, token string, callerID int64) (*db.Project, error) {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.AcceptedAt != nil {
		return nil, errs.InvalidArgument("invitation already used")
	}
	if s.now().Sub(inv.CreatedAt) > invitationTTL {
		return nil, errs.InvalidArgument("invitation expired")
	}
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(u.Email, inv.Email) {
		return nil, errs.PermissionDenied("invitation was sent to a different email")
	}

	p, err := s.store.GetProject(ctx, inv.ProjectID)
	if err != nil {
		return nil, err
	}
	if !IsMember(p, callerID) {
		if err := s.store.SetRole(ctx, p.ID, callerID, db.RoleMember); err != nil {
			return nil, err
		}
	}
	if err := s.store.MarkInvitationAccepted(ctx, inv.ID, s.now()); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, p.ID)
}
