package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kidandcat/tracker/internal/db"
)

type milestoneRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Status      string     `json:"status"`
}

func (r milestoneRequest) toModel() db.Milestone {
	return db.Milestone{
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Status:      db.MilestoneStatus(r.Status),
	}
}

func (s *Server) handleCreateMilestone(c *gin.Context) {
	projectID, ok := idParam(c, "projectId")
	if !ok {
		return
	}
	var req milestoneRequest
	if !bind(c, &req) {
		return
	}
	m, err := s.svc.Milestones.Create(c.Request.Context(), req.toModel(), projectID, currentUser(c).ID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) handleGetMilestone(c *gin.Context) {
	id, ok := idParam(c, "milestoneId")
	if !ok {
		return
	}
	m, err := s.svc.Milestones.Get(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleListMilestones(c *gin.Context) {
	projectID, ok := idParam(c, "projectId")
	if !ok {
		return
	}
	list, err := s.svc.Milestones.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleUpdateMilestone(c *gin.Context) {
	id, ok := idParam(c, "milestoneId")
	if !ok {
		return
	}
	var req milestoneRequest
	if !bind(c, &req) {
		return
	}
	m, err := s.svc.Milestones.Update(c.Request.Context(), id, req.toModel())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleDeleteMilestone(c *gin.Context) {
	id, ok := idParam(c, "milestoneId")
	if !ok {
		return
	}
	if err := s.svc.Milestones.Delete(c.Request.Context(), id, currentUser(c).ID); err != nil {
		s.respondErr(c, err)
		return
	}
	deleted(c, "milestone")
}

func (s *Server) handleAddMilestoneIssue(c *gin.Context) {
	s.milestoneIssue(c, true)
}

func (s *Server) handleRemoveMilestoneIssue(c *gin.Context) {
	s.milestoneIssue(c, false)
}

func (s *Server) milestoneIssue(c *gin.Context, add bool) {
	milestoneID, ok := idParam(c, "milestoneId")
	if !ok {
		return
	}
	issueID, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var err error
	if add {
		err = s.svc.Milestones.AddIssue(ctx, milestoneID, issueID)
	} else {
		err = s.svc.Milestones.RemoveIssue(ctx, milestoneID, issueID)
	}
	if err != nil {
		s.respondErr(c, err)
		return
	}
	m, err := s.svc.Milestones.Get(ctx, milestoneID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
