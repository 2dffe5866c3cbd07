package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signinRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.svc.Users.Register(ctx, req.Name, req.Email, req.Password); err != nil {
		s.respondErr(c, err)
		return
	}
	token, user, err := s.svc.Users.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

func (s *Server) handleSignin(c *gin.Context) {
	var req signinRequest
	if !bind(c, &req) {
		return
	}
	token, user, err := s.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (s *Server) handleProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}
