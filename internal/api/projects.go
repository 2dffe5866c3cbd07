package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/errs"
	"github.com/kidandcat/tracker/internal/service"
)

type projectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type roleRequest struct {
	UserID int64  `json:"userId" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type inviteRequest struct {
	ProjectID int64  `json:"projectId" binding:"required"`
	Email     string `json:"email" binding:"required"`
}

// memberProject loads the project named by the projectId parameter and
// checks that the caller belongs to it.
func (s *Server) memberProject(c *gin.Context) (*db.Project, bool) {
	id, ok := idParam(c, "projectId")
	if !ok {
		return nil, false
	}
	return s.requireMember(c, id)
}

func (s *Server) requireMember(c *gin.Context, id int64) (*db.Project, bool) {
	p, err := s.svc.Projects.Get(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return nil, false
	}
	if !service.IsMember(p, currentUser(c).ID) {
		s.respondErr(c, errs.PermissionDenied("not a member of this project"))
		return nil, false
	}
	return p, true
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectRequest
	if !bind(c, &req) {
		return
	}
	p, err := s.svc.Projects.Create(c.Request.Context(), req.Name, req.Description, currentUser(c).ID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.svc.Projects.ListForUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleGetProject(c *gin.Context) {
	p, ok := s.memberProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := idParam(c, "projectId")
	if !ok {
		return
	}
	if err := s.svc.Projects.Delete(c.Request.Context(), id, currentUser(c).ID); err != nil {
		s.respondErr(c, err)
		return
	}
	deleted(c, "project")
}

func (s *Server) handleGetChat(c *gin.Context) {
	p, ok := s.memberProject(c)
	if !ok {
		return
	}
	chat, err := s.svc.Projects.GetChat(c.Request.Context(), p.ID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (s *Server) handleSetRole(c *gin.Context) {
	id, ok := idParam(c, "projectId")
	if !ok {
		return
	}
	var req roleRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := s.svc.Projects.SetRole(ctx, id, currentUser(c).ID, req.UserID, req.Role); err != nil {
		s.respondErr(c, err)
		return
	}
	p, err := s.svc.Projects.Get(ctx, id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	id, ok := idParam(c, "projectId")
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}
	if err := s.svc.Projects.RemoveMember(c.Request.Context(), id, currentUser(c).ID, userID); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

func (s *Server) handleInvite(c *gin.Context) {
	var req inviteRequest
	if !bind(c, &req) {
		return
	}
	inv, err := s.svc.Projects.Invite(c.Request.Context(), req.ProjectID, currentUser(c).ID, req.Email)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (s *Server) handleAcceptInvitation(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		badRequest(c, "token required")
		return
	}
	p, err := s.svc.Projects.AcceptInvitation(c.Request.Context(), token, currentUser(c).ID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
