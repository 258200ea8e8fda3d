// Package api exposes the contribution ledger over HTTP with gin.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/metrics"
	"github.com/mmynk/tontine/internal/middleware"
	"github.com/mmynk/tontine/internal/service"
)

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Contributions *service.ContributionService
	Auth          *service.AuthService
	JWT           *auth.JWTManager
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	// AuthRequired guards /contribution/* and /auth/me with a bearer token.
	AuthRequired bool
}

// Server is the tontine HTTP server.
type Server struct {
	contributions *service.ContributionService
	auth          *service.AuthService
	logger        *slog.Logger
	validate      *validator.Validate
	router        *gin.Engine
}

// NewServer builds the router and registers every route.
func NewServer(deps Deps) *Server {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(deps.Logger),
		middleware.Instrument(deps.Metrics),
	)

	s := &Server{
		contributions: deps.Contributions,
		auth:          deps.Auth,
		logger:        deps.Logger,
		validate:      newValidator(),
		router:        router,
	}

	guard := middleware.OptionalAuth(deps.JWT)
	if deps.AuthRequired {
		guard = middleware.RequireAuth(deps.JWT)
	}

	router.GET("/healthz", s.handleHealth)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.GET("/me", middleware.RequireAuth(deps.JWT), s.handleMe)
		authGroup.GET("/get_id/:email", guard, s.handleUserIDByEmail)
	}

	contribution := router.Group("/contribution", guard)
	{
		contribution.POST("/session", s.handleCreateSession)
		contribution.GET("/sessions", s.handleListSessions)
		contribution.GET("/session/:id", s.handleGetSession)
		contribution.PATCH("/session/:id", s.handleCloseSession)
		contribution.POST("/session/:id/add-user", s.handleEnroll)
		contribution.POST("/session/:id/generate-months", s.handleGenerateSchedule)
		contribution.GET("/session/:id/contributions", s.handleListContributions)
		contribution.GET("/session/:id/periods", s.handleSessionPeriods)
		contribution.GET("/session/:id/balances", s.handleSessionBalances)
		contribution.POST("/payment/:id", s.handleRecordPayment)
		contribution.POST("/:id/winner", s.handleSetWinner)
		contribution.GET("/:id/payments", s.handleContributionPayments)
		contribution.GET("/user/:id/payments", s.handleUserPayments)
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
