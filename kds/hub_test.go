package kds

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-ordering/services"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func dialHub(t *testing.T, hub *Hub, restaurantID uint) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(hub.Register(restaurantID, 1, conn))
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount(restaurantID) == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestHubDeliversToRestaurantOnly(t *testing.T) {
	hub := NewHub(quietLogger())
	connA := dialHub(t, hub, 1)
	connB := dialHub(t, hub, 2)

	hub.Publish(services.Event{
		Type:         services.EventOrderPlaced,
		RestaurantID: 1,
		SessionID:    9,
		Data:         map[string]string{"order_number": "ORD-000001"},
	})

	require.NoError(t, connA.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := connA.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "order_placed", msg["event"])
	assert.Equal(t, float64(9), msg["session_id"])

	require.NoError(t, connB.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = connB.ReadMessage()
	assert.Error(t, err, "restaurant 2 must not see restaurant 1 events")
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(quietLogger())
	conn := dialHub(t, hub, 5)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount(5) == 0 }, time.Second, 10*time.Millisecond)
	hub.Publish(services.Event{Type: services.EventSessionOpened, RestaurantID: 5})
}
