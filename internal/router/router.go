package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-cartsync/config"
	"github.com/ikkim/udonggeum-cartsync/internal/app/controller"
	"github.com/ikkim/udonggeum-cartsync/internal/middleware"
)

type Router struct {
	cartController     *controller.CartController
	sessionController  *controller.SessionController
	checkoutController *controller.CheckoutController
	wsController       *controller.WSController
	sessionMiddleware  *middleware.SessionMiddleware
	metricsHandler     http.Handler
	config             *config.Config
}

func NewRouter(
	cartController *controller.CartController,
	sessionController *controller.SessionController,
	checkoutController *controller.CheckoutController,
	wsController *controller.WSController,
	sessionMiddleware *middleware.SessionMiddleware,
	metricsHandler http.Handler,
	cfg *config.Config,
) *Router {
	return &Router{
		cartController:     cartController,
		sessionController:  sessionController,
		checkoutController: checkoutController,
		wsController:       wsController,
		sessionMiddleware:  sessionMiddleware,
		metricsHandler:     metricsHandler,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "UDONGGEUM cart sync is running",
		})
	})

	if r.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(r.metricsHandler))
	}

	v1 := router.Group("/api/v1")
	{
		session := v1.Group("/session")
		{
			session.GET("", r.sessionController.GetSession)
			session.POST("", r.sessionController.SignIn)
			session.DELETE("", r.sessionController.SignOut)
		}

		cart := v1.Group("/cart")
		cart.Use(r.sessionMiddleware.CaptureToken())
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("/refresh", r.cartController.RefreshCart)
			cart.POST("/items", r.cartController.AddToCart)
			cart.PUT("/items/:id", r.cartController.UpdateCartItem)
			cart.DELETE("/items/:id", r.cartController.RemoveFromCart)
			cart.DELETE("", r.cartController.ClearCart)
		}

		checkout := v1.Group("/checkout")
		checkout.Use(r.sessionMiddleware.CaptureToken())
		{
			checkout.POST("/prepare", r.checkoutController.PrepareCheckout)
			checkout.POST("/complete", r.checkoutController.CompleteCheckout)
		}

		v1.GET("/ws", r.wsController.Stream)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
