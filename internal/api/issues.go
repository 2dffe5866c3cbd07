package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kidandcat/tracker/internal/service"
)

// issueRequest carries the optional issue fields; absent fields stay nil.
type issueRequest struct {
	ProjectID   int64      `json:"projectId"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	Type        *string    `json:"type"`
	DueDate     *time.Time `json:"dueDate"`
	MilestoneID *int64     `json:"milestoneId"`
	Tags        []string   `json:"tags"`

	// Without keepMilestone a full update that omits milestoneId detaches
	// the issue.
	KeepMilestone bool `json:"keepMilestone"`
}

func (r issueRequest) toService() service.IssueRequest {
	return service.IssueRequest{
		ProjectID:     r.ProjectID,
		Title:         r.Title,
		Description:   r.Description,
		Status:        r.Status,
		Priority:      r.Priority,
		Type:          r.Type,
		DueDate:       r.DueDate,
		MilestoneID:   r.MilestoneID,
		KeepMilestone: r.KeepMilestone,
		Tags:          r.Tags,
	}
}

func (s *Server) handleGetIssue(c *gin.Context) {
	id, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	is, err := s.svc.Issues.Get(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, viewIssue(is))
}

func (s *Server) handleListIssues(c *gin.Context) {
	id, ok := idParam(c, "projectId")
	if !ok {
		return
	}
	list, err := s.svc.Issues.ListByProject(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, viewIssues(list))
}

func (s *Server) handleCreateIssue(c *gin.Context) {
	var req issueRequest
	if !bind(c, &req) {
		return
	}
	if req.ProjectID <= 0 {
		badRequest(c, "projectId required")
		return
	}
	is, err := s.svc.Issues.Create(c.Request.Context(), req.toService(), currentUser(c).ID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewIssue(is))
}

func (s *Server) handleUpdateIssue(c *gin.Context) {
	id, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	var req issueRequest
	if !bind(c, &req) {
		return
	}
	is, err := s.svc.Issues.UpdateFull(c.Request.Context(), id, req.toService(), currentUser(c).ID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, viewIssue(is))
}

func (s *Server) handleUpdateIssueStatus(c *gin.Context) {
	id, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	is, err := s.svc.Issues.UpdateStatus(c.Request.Context(), id, c.Param("status"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, viewIssue(is))
}

func (s *Server) handleAssignIssue(c *gin.Context) {
	id, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}
	is, err := s.svc.Issues.Assign(c.Request.Context(), id, userID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, viewIssue(is))
}

func (s *Server) handleDeleteIssue(c *gin.Context) {
	id, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	if err := s.svc.Issues.Delete(c.Request.Context(), id, currentUser(c).ID); err != nil {
		s.respondErr(c, err)
		return
	}
	deleted(c, "issue")
}
