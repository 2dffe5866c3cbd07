package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kidandcat/tracker/internal/db"
)

const userKey = "user"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// requireUser resolves the Authorization header to a user or aborts with 401.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.svc.Users.FindByCredential(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			s.respondErr(c, err)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *db.User {
	u, _ := c.MustGet(userKey).(*db.User)
	return u
}
