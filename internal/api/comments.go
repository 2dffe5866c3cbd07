package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	IssueID int64  `json:"issueId" binding:"required"`
	Content string `json:"content"`
}

func (s *Server) handleCreateComment(c *gin.Context) {
	var req commentRequest
	if !bind(c, &req) {
		return
	}
	cm, err := s.svc.Comments.Create(c.Request.Context(), req.IssueID, currentUser(c).ID, req.Content)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewComment(cm))
}

func (s *Server) handleListComments(c *gin.Context) {
	issueID, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	list, err := s.svc.Comments.ListByIssue(c.Request.Context(), issueID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	out := make([]commentView, len(list))
	for i := range list {
		out[i] = viewComment(&list[i])
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	id, ok := idParam(c, "commentId")
	if !ok {
		return
	}
	if err := s.svc.Comments.Delete(c.Request.Context(), id, currentUser(c).ID); err != nil {
		s.respondErr(c, err)
		return
	}
	deleted(c, "comment")
}
