package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Cancel(c *gin.Context)
	RetryRefund(c *gin.Context)
}

type AvailabilityHTTP interface {
	Availability(c *gin.Context)
	Price(c *gin.Context)
	Calendar(c *gin.Context)
}

type PaymentHTTP interface {
	Start(c *gin.Context)
	Status(c *gin.Context)
	Webhook(c *gin.Context)
}

type SupportHTTP interface {
	Message(c *gin.Context)
	Topics(c *gin.Context)
}

type Handlers struct {
	Booking      BookingHTTP
	Availability AvailabilityHTTP
	Payment      PaymentHTTP
	Support      SupportHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", UserHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	registerSwaggerRoutes(router)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/listings/:id/bookings", h.Booking.Create)
		api.GET("/bookings", h.Booking.List)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
		api.POST("/bookings/:id/refund/retry", h.Booking.RetryRefund)
	}
	if h.Availability != nil {
		api.GET("/listings/:id/availability", h.Availability.Availability)
		api.GET("/listings/:id/price", h.Availability.Price)
		api.GET("/listings/:id/calendar", h.Availability.Calendar)
	}
	if h.Payment != nil {
		api.POST("/bookings/:id/payments", h.Payment.Start)
		api.GET("/payments/:intent/status", h.Payment.Status)
		api.POST("/payments/webhook", h.Payment.Webhook)
	}
	if h.Support != nil {
		api.POST("/support/messages", h.Support.Message)
		api.GET("/support/topics", h.Support.Topics)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
