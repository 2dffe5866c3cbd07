package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"github.com/kidandcat/tracker/internal/errs"
	"github.com/kidandcat/tracker/internal/service"
)

// Room attaches an accepted websocket to a project's chat room until the
// connection ends.
type Room interface {
	Serve(ctx context.Context, conn *websocket.Conn, projectID, userID int64)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Services    *service.Services
	Room        Room
	Health      Pinger
	Log         *slog.Logger
	CORSOrigins []string
}

type Server struct {
	svc     *service.Services
	room    Room
	health  Pinger
	log     *slog.Logger
	origins []string
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Server{
		svc:     opts.Services,
		room:    opts.Room,
		health:  opts.Health,
		log:     opts.Log,
		origins: opts.CORSOrigins,
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())

	r.GET("/healthz", s.handleHealth)

	r.POST("/auth/signup", s.handleSignup)
	r.POST("/auth/signin", s.handleSignin)

	r.GET("/ws/chat/:projectId", s.handleChatSocket)

	api := r.Group("/api", s.requireUser())
	api.GET("/users/profile", s.handleProfile)

	// Projects
	api.POST("/projects", s.handleCreateProject)
	api.GET("/projects", s.handleListProjects)
	api.POST("/projects/invite", s.handleInvite)
	api.GET("/projects/accept_invitation", s.handleAcceptInvitation)
	api.GET("/projects/:projectId", s.handleGetProject)
	api.DELETE("/projects/:projectId", s.handleDeleteProject)
	api.GET("/projects/:projectId/chat", s.handleGetChat)
	api.PUT("/projects/:projectId/roles", s.handleSetRole)
	api.DELETE("/projects/:projectId/roles/:userId", s.handleRemoveMember)

	// Issues
	api.POST("/issues", s.handleCreateIssue)
	api.GET("/issues/project/:projectId", s.handleListIssues)
	api.GET("/issues/:issueId", s.handleGetIssue)
	api.PUT("/issues/:issueId", s.handleUpdateIssue)
	api.PUT("/issues/:issueId/status/:status", s.handleUpdateIssueStatus)
	api.PUT("/issues/:issueId/assignee/:userId", s.handleAssignIssue)
	api.DELETE("/issues/:issueId", s.handleDeleteIssue)

	// Milestones
	api.POST("/milestones/project/:projectId", s.handleCreateMilestone)
	api.GET("/milestones/project/:projectId", s.handleListMilestones)
	api.GET("/milestones/:milestoneId", s.handleGetMilestone)
	api.PUT("/milestones/:milestoneId", s.handleUpdateMilestone)
	api.DELETE("/milestones/:milestoneId", s.handleDeleteMilestone)
	api.POST("/milestones/:milestoneId/issues/:issueId", s.handleAddMilestoneIssue)
	api.DELETE("/milestones/:milestoneId/issues/:issueId", s.handleRemoveMilestoneIssue)

	// Messages
	api.POST("/messages/send", s.handleSendMessage)
	api.GET("/messages/chat/:projectId", s.handleListMessages)
	api.PUT("/messages/:messageId", s.handleUpdateMessage)
	api.DELETE("/messages/:messageId", s.handleDeleteMessage)

	// Comments
	api.POST("/comments", s.handleCreateComment)
	api.GET("/comments/:issueId", s.handleListComments)
	api.DELETE("/comments/:commentId", s.handleDeleteComment)

	// Attachments
	api.POST("/attachments/issue/:issueId", s.handleUploadAttachment)
	api.GET("/attachments/issue/:issueId", s.handleListAttachments)
	api.GET("/attachments/:attachmentId/download", s.handleDownloadAttachment)
	api.DELETE("/attachments/:attachmentId", s.handleDeleteAttachment)

	return r
}

func (s *Server) cors() gin.HandlerFunc {
	if len(s.origins) == 0 {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AddAllowHeaders("Authorization")
	for _, o := range s.origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = s.origins
	return cors.New(cfg)
}

// acceptOptions derives the websocket origin check from the CORS origins.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, o := range s.origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
	}
	return opts
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Error("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindPermissionDenied:
		return http.StatusForbidden
	case errs.KindInvalidArgument:
		return http.StatusBadRequest
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	case errs.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondErr writes err with the status of its kind. Unclassified errors are
// logged and hidden from the client.
func (s *Server) respondErr(c *gin.Context, err error) {
	status := statusOf(errs.KindOf(err))
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// bind decodes the JSON body into v, answering 400 on failure.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

// idParam parses the named path parameter, answering 400 when it is not a
// positive integer.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func deleted(c *gin.Context, what string) {
	c.JSON(http.StatusOK, gin.H{"message": what + " deleted successfully"})
}
