package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obentoo/geodash/internal/server/users"
)

// Response messages of POST /api/login
const (
	MsgMissingFields      = "Please enter all fields"
	MsgUserDoesNotExist   = "User does not exist"
	MsgInvalidCredentials = "Invalid credentials"
	MsgInternalError      = "Something went wrong"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public view of an account
type userResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toResponse(u *users.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, "API is running...")
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		s.countLogin(resultMissingFields)
		c.JSON(http.StatusBadRequest, gin.H{"message": MsgMissingFields})
		return
	}

	user, err := s.users.FindByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, users.ErrNotFound) {
		s.countLogin(resultUnknownUser)
		c.JSON(http.StatusBadRequest, gin.H{"message": MsgUserDoesNotExist})
		return
	}
	if err != nil {
		s.log.Error("user lookup failed: %v", err)
		s.countLogin(resultError)
		c.JSON(http.StatusInternalServerError, gin.H{"message": MsgInternalError})
		return
	}

	if !user.CheckPassword(req.Password) {
		s.countLogin(resultBadPassword)
		c.JSON(http.StatusBadRequest, gin.H{"message": MsgInvalidCredentials})
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.log.Error("token signing failed: %v", err)
		s.countLogin(resultError)
		c.JSON(http.StatusInternalServerError, gin.H{"message": MsgInternalError})
		return
	}

	s.countLogin(resultSuccess)
	s.log.Info("user %s logged in", user.Email)
	c.JSON(http.StatusOK, loginResponse{Token: token, User: toResponse(user)})
}

func (s *Server) handleMe(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*Claims)

	id, err := claims.UserID()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), id)
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": MsgUserDoesNotExist})
		return
	}
	if err != nil {
		s.log.Error("user lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": MsgInternalError})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toResponse(user)})
}

func (s *Server) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.loginAttempts.WithLabelValues(result).Inc()
	}
}
