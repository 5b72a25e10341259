package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/middlewares"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

type UserController struct {
	users  *services.UserService
	tokens *utils.TokenManager
	log    *logrus.Logger
}

func NewUserController(users *services.UserService, tokens *utils.TokenManager, log *logrus.Logger) *UserController {
	return &UserController{users: users, tokens: tokens, log: log}
}

// Register -> staff account sign up
func (uc *UserController) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	user, err := uc.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondServiceError(c, uc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "User registered", gin.H{"user_id": user.ID})
}

// Login -> returns a JWT
func (uc *UserController) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	token, user, err := uc.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(c, uc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token": token,
		"user":  user,
	})
}

func (uc *UserController) GetProfile(c *gin.Context) {
	user, err := uc.users.GetProfile(c.Request.Context(), middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, uc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "User profile", user)
}

// Logout -> revokes the token used for this request
func (uc *UserController) Logout(c *gin.Context) {
	uc.tokens.Revoke(middlewares.Claims(c))
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}
