package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/middlewares"
	"github.com/yeremiapane/table-ordering/models"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

type SessionController struct {
	sessions     *services.SessionService
	participants *services.ParticipantService
	log          *logrus.Logger
}

func NewSessionController(sessions *services.SessionService, participants *services.ParticipantService, log *logrus.Logger) *SessionController {
	return &SessionController{sessions: sessions, participants: participants, log: log}
}

// OpenSession -> a diner scans the table QR and becomes host. Staff may open
// on behalf of a device by passing device_id in the body.
func (sc *SessionController) OpenSession(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	tableID, err := paramID(c, "table_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		DeviceID     string `json:"device_id"`
		HostName     string `json:"host_name"`
		PersonsCount int    `json:"persons_count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	open := services.OpenSessionRequest{
		RestaurantID: restaurantID,
		TableID:      tableID,
		HostDeviceID: middlewares.DeviceID(c),
		HostName:     req.HostName,
		PersonsCount: req.PersonsCount,
	}
	ctx := c.Request.Context()
	var session *models.TableSession
	if staffID := middlewares.UserID(c); staffID != 0 {
		open.HostDeviceID = req.DeviceID
		session, err = sc.sessions.OpenSessionAsStaff(ctx, staffID, open)
	} else {
		session, err = sc.sessions.OpenSession(ctx, open)
	}
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Session opened", session)
}

// JoinSession -> a diner joins a friend's table with the join code
func (sc *SessionController) JoinSession(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		JoinCode    string `json:"join_code" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := sc.sessions.JoinSession(c.Request.Context(), restaurantID, req.JoinCode, middlewares.DeviceID(c), req.DisplayName)
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	status := http.StatusCreated
	if result.Rejoined {
		status = http.StatusOK
	}
	utils.RespondJSON(c, status, "Joined session", result)
}

func (sc *SessionController) GetSession(c *gin.Context) {
	sessionID, err := paramID(c, "session_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	session, err := sc.sessions.GetSession(c.Request.Context(), actor(c), sessionID)
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session detail", session)
}

func (sc *SessionController) ListActiveSessions(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	sessions, err := sc.sessions.ListActiveSessions(c.Request.Context(), middlewares.UserID(c), restaurantID)
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active sessions", sessions)
}

// CloseSession -> bill settled, table is free again
func (sc *SessionController) CloseSession(c *gin.Context) {
	sc.end(c, sc.sessions.CloseSession, "Session closed")
}

func (sc *SessionController) CancelSession(c *gin.Context) {
	sc.end(c, sc.sessions.CancelSession, "Session cancelled")
}

func (sc *SessionController) end(c *gin.Context, fn func(ctx context.Context, sessionID, staffID uint) (*models.TableSession, error), message string) {
	sessionID, err := paramID(c, "session_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	session, err := fn(c.Request.Context(), sessionID, middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, session)
}

func (sc *SessionController) LeaveSession(c *gin.Context) {
	sessionID, err := paramID(c, "session_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	participant, err := sc.participants.LeaveSession(c.Request.Context(), sessionID, middlewares.DeviceID(c))
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Left session", participant)
}

// AddParticipant -> staff seats a device, reactivating it if it was removed
func (sc *SessionController) AddParticipant(c *gin.Context) {
	sessionID, err := paramID(c, "session_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	var req struct {
		DeviceID    string `json:"device_id" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	participant, existed, err := sc.participants.AddParticipant(c.Request.Context(), actor(c), sessionID, req.DeviceID, req.DisplayName)
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	utils.RespondJSON(c, status, "Participant added", participant)
}

func (sc *SessionController) RemoveParticipant(c *gin.Context) {
	sessionID, err := paramID(c, "session_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	participant, err := sc.participants.RemoveParticipant(c.Request.Context(), middlewares.UserID(c), sessionID, c.Param("device_id"))
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Participant removed", participant)
}

func (sc *SessionController) ListParticipants(c *gin.Context) {
	sessionID, err := paramID(c, "session_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	participants, err := sc.participants.ListParticipants(c.Request.Context(), actor(c), sessionID)
	if err != nil {
		respondServiceError(c, sc.log, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Participants", participants)
}
