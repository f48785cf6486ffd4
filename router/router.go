package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/qrdine/config"
	"github.com/yeremiapane/qrdine/controllers"
	"github.com/yeremiapane/qrdine/middlewares"
	"github.com/yeremiapane/qrdine/qrtoken"
	"github.com/yeremiapane/qrdine/services"
)

func SetupRouter(db *gorm.DB, cfg config.Config) *gin.Engine {
	r := gin.Default()

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	// Inisialisasi codec + services
	codec := qrtoken.New([]byte(cfg.QRTokenSecret))
	lockSvc := services.NewTableLockService(db, codec, cfg.PinLength, cfg.SessionTTL)
	checkoutSvc := services.NewCheckoutService(db)

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(db)
	tableCtrl := controllers.NewTableController(db, codec)
	sessionCtrl := controllers.NewTableSessionController(lockSvc)
	checkoutCtrl := controllers.NewCheckoutController(checkoutSvc)
	orderCtrl := controllers.NewOrderController(db, checkoutSvc)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter untuk login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// -- CUSTOMER (tanpa auth; otorisasi lewat token QR bertanda tangan) --
	api := r.Group("/api")
	{
		api.POST("/table-session/open", sessionCtrl.OpenSession)
		api.POST("/table-session/join", sessionCtrl.JoinSession)
		api.POST("/table-session/close", sessionCtrl.CloseSession)
		api.POST("/orders/checkout", checkoutCtrl.PlaceOrder)
	}

	// Endpoint WebSocket dashboard staff (token lewat query string)
	ws := r.Group("/events")
	ws.Use(middlewares.WebSocketAuthMiddleware())
	ws.GET("/ws", controllers.EventsHandler)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/profile", userCtrl.GetProfile)

	// TABLE
	auth.GET("/tables", tableCtrl.GetAllTables)
	auth.POST("/tables", tableCtrl.CreateTable)
	auth.GET("/tables/:table_id", tableCtrl.GetTableByID)
	auth.PATCH("/tables/:table_id", tableCtrl.UpdateTableStatus)
	auth.DELETE("/tables/:table_id", tableCtrl.DeleteTable)

	// Cetak QR meja: hanya konteks server ini yang memegang signing secret
	auth.POST("/tables/:table_id/qr", middlewares.RequireRole("staff"), tableCtrl.MintTableQR)

	// ORDERS (staff/admin)
	auth.GET("/orders", orderCtrl.GetAllOrders)
	auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	auth.PATCH("/orders/:order_id", middlewares.RequireRole("staff", "chef"), orderCtrl.UpdateOrderStatus)

	return r
}
