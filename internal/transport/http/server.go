package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foerderscout/internal/bootstrap"
	"foerderscout/internal/transport/http/handler"
	"foerderscout/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger.Named("http")), middleware.Metrics(), gin.Recovery())
	router.MaxMultipartMemory = app.Config.Storage.MaxUploadBytes

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	services := app.Services
	authHandler := handler.NewAuthHandler(services.Auth)
	grantHandler := handler.NewGrantHandler(services.Grants)
	applicationHandler := handler.NewApplicationHandler(services.Applications, services.Documents)
	documentHandler := handler.NewDocumentHandler(services.Documents)
	paymentHandler := handler.NewPaymentHandler(services.Auth)

	auth := middleware.AuthJWT(app.Config.Auth.JWTSecret, services.Auth)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", auth, authHandler.Refresh)
	authGroup.GET("/me", auth, authHandler.Me)
	authGroup.PATCH("/me", auth, authHandler.UpdateMe)
	authGroup.POST("/change-password", auth, authHandler.ChangePassword)

	v1.GET("/users/me/stats", auth, authHandler.Stats)

	grantGroup := v1.Group("/grants")
	grantGroup.GET("", grantHandler.List)
	grantGroup.GET("/:id", grantHandler.Get)
	grantGroup.POST("/search", grantHandler.Search)

	applicationGroup := v1.Group("/applications")
	applicationGroup.Use(auth)
	applicationGroup.POST("", applicationHandler.Create)
	applicationGroup.GET("", applicationHandler.List)
	applicationGroup.GET("/:id", applicationHandler.Get)
	applicationGroup.PATCH("/:id", applicationHandler.Update)
	applicationGroup.DELETE("/:id", applicationHandler.Delete)
	applicationGroup.POST("/:id/generate", applicationHandler.Generate)
	applicationGroup.POST("/:id/submit", applicationHandler.Submit)
	applicationGroup.POST("/:id/decision", applicationHandler.Decide)
	applicationGroup.POST("/:id/approval-notice", applicationHandler.UploadApprovalNotice)
	applicationGroup.GET("/:id/documents", documentHandler.ListByApplication)

	documentGroup := v1.Group("/documents")
	documentGroup.Use(auth)
	documentGroup.POST("/generate", documentHandler.Generate)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.GET("/:id/download", documentHandler.Download)
	documentGroup.DELETE("/:id", documentHandler.Delete)

	paymentGroup := v1.Group("/payments")
	paymentGroup.GET("/fee-tiers", paymentHandler.FeeTiers)
	paymentGroup.POST("/calculate-fee", auth, paymentHandler.CalculateFee)

	return router
}
