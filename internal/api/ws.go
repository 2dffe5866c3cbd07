package api

import (
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"github.com/kidandcat/tracker/internal/errs"
	"github.com/kidandcat/tracker/internal/service"
)

// handleChatSocket upgrades project members to the chat room. Browsers
// cannot set headers on websocket requests, so the token may come in the
// query string.
func (s *Server) handleChatSocket(c *gin.Context) {
	projectID, ok := idParam(c, "projectId")
	if !ok {
		return
	}
	cred := c.Query("token")
	if cred == "" {
		cred = c.GetHeader("Authorization")
	}
	ctx := c.Request.Context()
	u, err := s.svc.Users.FindByCredential(ctx, cred)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	p, err := s.svc.Projects.Get(ctx, projectID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	if !service.IsMember(p, u.ID) {
		s.respondErr(c, errs.PermissionDenied("not a member of this project"))
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, s.acceptOptions())
	if err != nil {
		// Accept has already written the response.
		s.log.Warn("websocket accept failed", "project_id", projectID, "err", err)
		return
	}
	s.room.Serve(ctx, conn, projectID, u.ID)
}
