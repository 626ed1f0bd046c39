package api

import (
	"github.com/AjcJustin/aero-park/internal/api/handler"
	"github.com/AjcJustin/aero-park/internal/api/middleware"
	"github.com/AjcJustin/aero-park/internal/service"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	AuthService        *service.AuthService
	ParkingService     *service.ParkingService
	ReservationService *service.ReservationService
	BarrierService     *service.BarrierService
	CodeService        *service.AccessCodeService
	DeviceService      *service.DeviceService
	AuditService       *service.AuditService
	PaymentService     *service.PaymentService
	AuthMw             *middleware.AuthMiddleware
	WSManager          *handler.WebSocketManager
	SensorAPIKey       string
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-API-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// WebSocket endpoint (không cần auth cho real-time connection)
	wsHandler := handler.NewWebSocketHandler(deps.WSManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(deps.AuthService)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	parkingH := handler.NewParkingHandler(deps.ParkingService)
	barrierH := handler.NewBarrierHandler(deps.BarrierService, deps.CodeService)

	// Endpoint cho thiết bị phần cứng, bảo vệ bằng API key thay vì JWT.
	deviceAPI := r.Group("/")
	deviceAPI.Use(middleware.RequireAPIKey(deps.SensorAPIKey))
	{
		deviceAPI.POST("/sensor/update", parkingH.SensorUpdate)
		deviceAPI.POST("/barrier/entry-check", barrierH.EntryCheck)
		deviceAPI.POST("/barrier/exit", barrierH.Exit)
		deviceAPI.POST("/barrier/validate-code", barrierH.ValidateCode)
	}

	v1 := r.Group("/api/v1")
	v1.Use(deps.AuthMw.Authenticate())
	{
		parkingRoutes := v1.Group("/parking")
		{
			parkingRoutes.GET("/status", parkingH.GetStatus)
			parkingRoutes.GET("/spots/:spot_id", parkingH.GetSpot)
			parkingRoutes.POST("/spots", deps.AuthMw.AuthorizeRole("admin"), parkingH.CreateSpot)
			parkingRoutes.DELETE("/spots/:spot_id", deps.AuthMw.AuthorizeRole("admin"), parkingH.DeleteSpot)
		}

		reservationH := handler.NewReservationHandler(deps.ReservationService)
		reservationRoutes := v1.Group("/reservations")
		{
			reservationRoutes.POST("", reservationH.Reserve)
			reservationRoutes.GET("/my", reservationH.MyReservations)
			reservationRoutes.GET("/:reservation_id", reservationH.GetReservation)
			reservationRoutes.POST("/:reservation_id/release", reservationH.Release)
			reservationRoutes.POST("/:reservation_id/extend", reservationH.Extend)
		}

		barrierRoutes := v1.Group("/barriers")
		{
			barrierRoutes.GET("/:barrier_id/status", barrierH.Status)
			barrierRoutes.POST("/open", deps.AuthMw.AuthorizeRole("admin", "operator"), barrierH.Open)
			barrierRoutes.POST("/close", deps.AuthMw.AuthorizeRole("admin", "operator"), barrierH.Close)
		}

		paymentH := handler.NewPaymentHandler(deps.PaymentService)
		paymentRoutes := v1.Group("/payments")
		{
			paymentRoutes.GET("/my", paymentH.MyPayments)
			paymentRoutes.GET("/:payment_id", paymentH.GetPayment)
		}

		auditH := handler.NewAuditHandler(deps.AuditService)
		v1.GET("/audit-logs", deps.AuthMw.AuthorizeRole("admin", "operator"), auditH.Query)

		// Device Monitoring Routes
		deviceH := handler.NewDeviceHandler(deps.DeviceService)
		deviceRoutes := v1.Group("/devices")
		deviceRoutes.Use(deps.AuthMw.AuthorizeRole("admin")) // Chỉ admin được xem thông tin thiết bị
		{
			deviceRoutes.POST("", deviceH.RegisterDevice)
			deviceRoutes.GET("", deviceH.GetAllDevices)
			deviceRoutes.GET("/:thing_name", deviceH.GetDeviceByThingName)
		}
	}
	return r
}
