package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"branchchat/platform"
	"branchchat/service"
)

var logger = platform.Logger

// UserController ...
type UserController struct {
	users *service.UserService
}

func NewUserController(users *service.UserService) *UserController {
	return &UserController{users: users}
}

func (ctrl *UserController) Guest(c *gin.Context) {
	user, token, err := ctrl.users.Guest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Infof("[%s] Guest %s signed in", c.GetString("requestId"), user.UID)
	c.JSON(http.StatusOK, gin.H{"token": token, "uid": user.UID})
}

func (ctrl *UserController) Register(c *gin.Context) {
	logger.Infof("[%s] Handling user registration request", c.GetString("requestId"))

	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required,min=8"`
		Email    string `json:"email" binding:"omitempty,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := ctrl.users.Register(c.Request.Context(), service.Credentials{
		Username: input.Username,
		Password: input.Password,
		Email:    input.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Infof("[%s] User %s registered successfully", c.GetString("requestId"), input.Username)
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully", "uid": user.UID})
}

func (ctrl *UserController) Login(c *gin.Context) {
	logger.Infof("[%s] Handling user login request", c.GetString("requestId"))

	var loginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&loginRequest); err != nil {
		badRequest(c, err)
		return
	}

	token, err := ctrl.users.Login(c.Request.Context(), service.Credentials{
		Username: loginRequest.Username,
		Password: loginRequest.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Infof("[%s] User %s login successfully", c.GetString("requestId"), loginRequest.Username)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Upgrade escalates the current anonymous identity to a registered account.
func (ctrl *UserController) Upgrade(c *gin.Context) {
	uid, _ := CurrentUserID(c)
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required,min=8"`
		Email    string `json:"email" binding:"omitempty,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	err := ctrl.users.Upgrade(c.Request.Context(), uid, service.Credentials{
		Username: input.Username,
		Password: input.Password,
		Email:    input.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Infof("[%s] User %s upgraded to %s", c.GetString("requestId"), uid, input.Username)
	c.JSON(http.StatusOK, gin.H{"message": "Account upgraded", "uid": uid})
}
