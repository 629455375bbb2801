package router

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/silentsos/silentsos/internal/handlers"
	"github.com/silentsos/silentsos/internal/logging"
	"github.com/silentsos/silentsos/internal/metrics"
	"github.com/silentsos/silentsos/internal/middleware"
)

// Options holds the router settings that do not belong to the handlers.
type Options struct {
	Metrics *metrics.Metrics
	// MediaRoot is served at the configured media URL when audio is stored
	// on local disk. Empty disables it.
	MediaRoot string
}

func NewRouter(h *handlers.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logging.For("http")))

	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     h.Config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.MaxMultipartMemory = 8 << 20

	if opts.MediaRoot != "" && strings.HasPrefix(h.Config.Storage.MediaURL, "/") {
		r.Static(h.Config.Storage.MediaURL, opts.MediaRoot)
	}

	requireAuth := middleware.AuthMiddleware(h.DB, h.Issuer)
	optionalAuth := middleware.OptionalAuth(h.DB, h.Issuer)

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		if opts.Metrics != nil {
			api.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
		}

		api.GET("/ws/alerts", requireAuth, h.AlertsWebSocket)

		auth := api.Group("/auth", middleware.RateLimit(time.Second, 10, 10*time.Minute))
		{
			auth.POST("/login", h.LoginUser)
			auth.POST("/google", h.GoogleLogin)
			auth.POST("/token/refresh", h.RefreshToken)
			auth.POST("/logout", h.LogoutUser)
			auth.GET("/me", requireAuth, h.Me)

			if h.Config.Google.WebFlowEnabled() {
				auth.GET("/google/start", h.GoogleStart)
				auth.GET("/google/complete", h.GoogleComplete)
				auth.GET("/google/callback", h.GoogleCallback)
				auth.GET("/google/logout", h.GoogleLogout)
			}
		}

		users := api.Group("/users", requireAuth)
		{
			users.GET("/me", h.GetProfile)
			users.PATCH("/me", h.UpdateProfile)
			users.DELETE("/me", h.DeleteProfile)
		}

		riskAreas := api.Group("/risk-areas", requireAuth)
		{
			riskAreas.GET("", h.ListRiskAreas)
			riskAreas.POST("", h.CreateRiskArea)
			riskAreas.GET("/:id", h.GetRiskArea)
			riskAreas.PUT("/:id", h.UpdateRiskArea)
			riskAreas.PATCH("/:id", h.UpdateRiskArea)
			riskAreas.DELETE("/:id", h.DeleteRiskArea)
		}

		alerts := api.Group("/alerts")
		{
			if h.Alerts.Options().AllowAnonymous {
				alerts.POST("", optionalAuth, h.CreateAlert)
			} else {
				alerts.POST("", requireAuth, h.CreateAlert)
			}

			alerts.GET("", requireAuth, h.ListAlerts)
			alerts.GET("/:id", requireAuth, h.GetAlert)
			alerts.GET("/:id/credibility", requireAuth, h.GetAlertCredibility)
			alerts.PUT("/:id", requireAuth, h.UpdateAlert)
			alerts.PATCH("/:id", requireAuth, h.UpdateAlert)
			alerts.DELETE("/:id", requireAuth, h.DeleteAlert)
		}

		validations := api.Group("/validations", requireAuth)
		{
			validations.GET("", h.ListValidations)
			validations.POST("", h.CreateValidation)
			validations.GET("/:id", h.GetValidation)
		}

		endorsements := api.Group("/endorsements", requireAuth)
		{
			endorsements.GET("", h.ListEndorsements)
			endorsements.POST("", h.CreateEndorsement)
			endorsements.GET("/:id", h.GetEndorsement)
			endorsements.DELETE("/:id", h.DeleteEndorsement)
		}
	}

	return r
}
