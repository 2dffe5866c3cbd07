package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kidandcat/tracker/internal/errs"
)

const maxMessageBody = 64 << 10

type sendMessageRequest struct {
	SenderID  int64  `json:"senderId" binding:"required"`
	ProjectID int64  `json:"projectId" binding:"required"`
	Content   string `json:"content"`
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bind(c, &req) {
		return
	}
	if req.SenderID != currentUser(c).ID {
		s.respondErr(c, errs.PermissionDenied("cannot send messages as another user"))
		return
	}
	if _, ok := s.requireMember(c, req.ProjectID); !ok {
		return
	}
	m, err := s.svc.Messages.Send(c.Request.Context(), req.SenderID, req.ProjectID, req.Content)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleListMessages(c *gin.Context) {
	p, ok := s.memberProject(c)
	if !ok {
		return
	}
	list, err := s.svc.Messages.ListByProject(c.Request.Context(), p.ID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleDeleteMessage(c *gin.Context) {
	id, ok := idParam(c, "messageId")
	if !ok {
		return
	}
	if err := s.svc.Messages.Delete(c.Request.Context(), id, currentUser(c).ID); err != nil {
		s.respondErr(c, err)
		return
	}
	deleted(c, "message")
}

// handleUpdateMessage takes the new content as the raw body. A body that is
// a JSON string literal is decoded first.
func (s *Server) handleUpdateMessage(c *gin.Context) {
	id, ok := idParam(c, "messageId")
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBody))
	if err != nil {
		badRequest(c, "cannot read body")
		return
	}
	content := string(body)
	if trimmed := strings.TrimSpace(content); strings.HasPrefix(trimmed, `"`) {
		var decoded string
		if json.Unmarshal([]byte(trimmed), &decoded) == nil {
			content = decoded
		}
	}
	m, err := s.svc.Messages.Update(c.Request.Context(), id, currentUser(c).ID, content)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
