package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/middlewares"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

var kindStatus = map[services.Kind]int{
	services.KindNotFound:          http.StatusNotFound,
	services.KindTableUnavailable:  http.StatusConflict,
	services.KindInvalidTransition: http.StatusConflict,
	services.KindSessionNotActive:  http.StatusConflict,
	services.KindConflict:          http.StatusConflict,
	services.KindAlreadyJoined:     http.StatusConflict,
	services.KindForbidden:         http.StatusForbidden,
	services.KindValidation:        http.StatusUnprocessableEntity,
	services.KindResourceExhausted: http.StatusServiceUnavailable,
	services.KindUnauthorized:      http.StatusUnauthorized,
}

// StatusFor maps a service error kind to its HTTP status.
func StatusFor(err error) int {
	if status, ok := kindStatus[services.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondServiceError writes err with its kind as error_code. Internal
// failures are logged and their details are not sent to the client.
func respondServiceError(c *gin.Context, log *logrus.Logger, err error) {
	status := StatusFor(err)
	kind := services.KindOf(err)

	if errors.Is(err, services.ErrCompensationFailed) {
		log.WithError(err).WithField("event", "compensation_failed").Error("request left partial state")
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(middlewares.ContextRequestID),
		}).Error("request failed")
		utils.RespondErrorCode(c, status, string(services.KindInternal), errors.New("internal server error"))
		return
	}
	utils.RespondErrorCode(c, status, string(kind), err)
}

func respondBadRequest(c *gin.Context, err error) {
	utils.RespondErrorCode(c, http.StatusBadRequest, string(services.KindValidation), err)
}

func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(id), nil
}

// actor is the staff user when the request is authenticated, otherwise the
// device from X-Device-ID.
func actor(c *gin.Context) services.Attribution {
	if uid := middlewares.UserID(c); uid != 0 {
		return services.Staff(uid)
	}
	return services.Customer(middlewares.DeviceID(c))
}
