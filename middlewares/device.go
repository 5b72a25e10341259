package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-ordering/utils"
)

const (
	DeviceHeader  = "X-Device-ID"
	ContextDevice = "device_id"
	maxDeviceID   = 128
)

// DeviceIdentity requires the opaque device id customer routes act as.
func DeviceIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := strings.TrimSpace(c.GetHeader(DeviceHeader))
		if deviceID == "" || len(deviceID) > maxDeviceID {
			utils.RespondErrorCode(c, http.StatusBadRequest, "validation_error", errors.New("X-Device-ID header is required"))
			c.Abort()
			return
		}
		c.Set(ContextDevice, deviceID)
		c.Next()
	}
}

func DeviceID(c *gin.Context) string {
	return c.GetString(ContextDevice)
}
