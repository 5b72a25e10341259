package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/controllers"
	"github.com/yeremiapane/table-ordering/kds"
	"github.com/yeremiapane/table-ordering/middlewares"
	"github.com/yeremiapane/table-ordering/services"
	"github.com/yeremiapane/table-ordering/utils"
)

// Dependencies are the wired services the HTTP layer is built on.
type Dependencies struct {
	Users        *services.UserService
	Restaurants  *services.RestaurantService
	Tables       *services.TableService
	Menu         *services.MenuService
	Sessions     *services.SessionService
	Participants *services.ParticipantService
	Orders       *services.OrderService
	Authz        *services.Authorizer
	Hub          *kds.Hub
	Tokens       *utils.TokenManager
	Log          *logrus.Logger

	RateLimiter *middlewares.RateLimiter
	CORSOrigins []string
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware(deps.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(deps.CORSOrigins))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.RateLimit())
	}

	userCtrl := controllers.NewUserController(deps.Users, deps.Tokens, deps.Log)
	restaurantCtrl := controllers.NewRestaurantController(deps.Restaurants, deps.Log)
	tableCtrl := controllers.NewTableController(deps.Tables, deps.Log)
	menuCtrl := controllers.NewMenuController(deps.Menu, deps.Log)
	sessionCtrl := controllers.NewSessionController(deps.Sessions, deps.Participants, deps.Log)
	orderCtrl := controllers.NewOrderController(deps.Orders, deps.Log)
	kdsCtrl := controllers.NewKDSController(deps.Hub, deps.CORSOrigins, deps.Log)

	auth := middlewares.AuthMiddleware(deps.Tokens)
	member := middlewares.RestaurantMember(deps.Authz, deps.Log)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	r.GET("/restaurants/:restaurant_id/menu", menuCtrl.GetMenu)

	// -- CUSTOMER (device identity, no login) --
	customer := r.Group("/")
	customer.Use(middlewares.DeviceIdentity())
	{
		customer.POST("/restaurants/:restaurant_id/tables/:table_id/sessions", sessionCtrl.OpenSession)
		customer.POST("/restaurants/:restaurant_id/sessions/join", sessionCtrl.JoinSession)
		customer.GET("/sessions/:session_id", sessionCtrl.GetSession)
		customer.POST("/sessions/:session_id/leave", sessionCtrl.LeaveSession)
		customer.GET("/sessions/:session_id/participants", sessionCtrl.ListParticipants)
		customer.POST("/sessions/:session_id/orders", orderCtrl.CreateOrder)
		customer.GET("/sessions/:session_id/orders", orderCtrl.GetSessionOrders)
		customer.GET("/orders/:order_id", orderCtrl.GetOrderByID)
		customer.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	admin := r.Group("/admin")
	admin.Use(auth)

	admin.GET("/profile", userCtrl.GetProfile)
	admin.POST("/logout", userCtrl.Logout)

	admin.POST("/restaurants", restaurantCtrl.CreateRestaurant)
	admin.GET("/restaurants", restaurantCtrl.ListRestaurants)

	restaurant := admin.Group("/restaurants/:restaurant_id")
	restaurant.Use(member)
	{
		restaurant.GET("", restaurantCtrl.GetRestaurant)
		restaurant.PUT("/workflow", restaurantCtrl.UpdateWorkflow)
		restaurant.POST("/staff", restaurantCtrl.AddStaff)

		restaurant.POST("/tables", tableCtrl.CreateTable)
		restaurant.GET("/tables", tableCtrl.GetAllTables)
		restaurant.PATCH("/tables/:table_id", tableCtrl.UpdateTableStatus)
		restaurant.POST("/tables/:table_id/sessions", sessionCtrl.OpenSession)

		restaurant.POST("/categories", menuCtrl.CreateCategory)
		restaurant.POST("/menu", menuCtrl.CreateMenu)
		restaurant.PATCH("/menu/:item_id", menuCtrl.UpdateMenu)

		restaurant.GET("/sessions", sessionCtrl.ListActiveSessions)
		restaurant.GET("/kitchen", orderCtrl.GetKitchenDisplay)
	}

	// SESSIONS (staff)
	admin.GET("/sessions/:session_id", sessionCtrl.GetSession)
	admin.POST("/sessions/:session_id/close", sessionCtrl.CloseSession)
	admin.POST("/sessions/:session_id/cancel", sessionCtrl.CancelSession)
	admin.GET("/sessions/:session_id/participants", sessionCtrl.ListParticipants)
	admin.POST("/sessions/:session_id/participants", sessionCtrl.AddParticipant)
	admin.DELETE("/sessions/:session_id/participants/:device_id", sessionCtrl.RemoveParticipant)

	// ORDERS (staff)
	admin.POST("/sessions/:session_id/orders", orderCtrl.CreateOrder)
	admin.GET("/sessions/:session_id/orders", orderCtrl.GetSessionOrders)
	admin.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	admin.PATCH("/orders/:order_id/status", orderCtrl.UpdateOrderStatus)
	admin.PATCH("/order-items/:item_id/status", orderCtrl.UpdateItemStatus)

	// KDS websocket, token passed as ?token=
	r.GET("/ws/restaurants/:restaurant_id", auth, member, kdsCtrl.Connect)

	return r
}
