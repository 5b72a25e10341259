package middlewares

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

// RestaurantMember rejects staff who are not active members of the
// restaurant named by the :restaurant_id path parameter. Permission checks
// for the individual operation still happen in the services.
func RestaurantMember(authz *services.Authorizer, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == 0 {
			utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
			c.Abort()
			return
		}

		restaurantID, err := strconv.ParseUint(c.Param("restaurant_id"), 10, 64)
		if err != nil || restaurantID == 0 {
			utils.RespondErrorCode(c, http.StatusBadRequest, "validation_error", errors.New("invalid restaurant_id"))
			c.Abort()
			return
		}

		if err := authz.RequireMember(c.Request.Context(), uint(restaurantID), userID); err != nil {
			kind := services.KindOf(err)
			status := http.StatusForbidden
			if kind != services.KindForbidden {
				status = http.StatusInternalServerError
				log.WithError(err).WithField("restaurant_id", restaurantID).Error("membership check failed")
			}
			utils.RespondErrorCode(c, status, string(kind), err)
			c.Abort()
			return
		}
		c.Next()
	}
}
