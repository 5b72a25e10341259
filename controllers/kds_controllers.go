package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/kds"
	"github.com/yeremiapane/table-ordering/middlewares"
)

type KDSController struct {
	hub      *kds.Hub
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewKDSController accepts websocket upgrades from the given origins; an
// empty list or "*" accepts any origin.
func NewKDSController(hub *kds.Hub, origins []string, log *logrus.Logger) *KDSController {
	return &KDSController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || lo.Contains(origins, "*") || lo.Contains(origins, origin)
			},
		},
		log: log,
	}
}

// Connect streams live events of one restaurant to a staff screen. Auth and
// membership are checked by middleware before the upgrade.
func (kc *KDSController) Connect(c *gin.Context) {
	restaurantID, err := paramID(c, "restaurant_id")
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	conn, err := kc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		kc.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	kc.hub.Serve(kc.hub.Register(restaurantID, middlewares.UserID(c), conn))
}
