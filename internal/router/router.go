// Package router assembles the HTTP surface.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"otp_expense_tracker/internal/handler"
	"otp_expense_tracker/internal/middleware"
	"otp_expense_tracker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps holds what New needs to build the engine.
type Deps struct {
	Auth     service.AuthService
	Expenses service.ExpenseService
	Logger   *slog.Logger

	APIPrefix            string
	OTPInResponse        bool
	LegacyPublicExpenses bool

	// Ping reports store health for /health. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// New creates a new gin engine serving /health, /metrics and the API routes
// under Deps.APIPrefix.
func New(d Deps) *gin.Engine {
	handler.RegisterValidators()

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(d.Logger),
		middleware.Metrics(),
		middleware.CORS(),
	)

	r.GET("/health", health(d.Ping))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handler.NewAuthHandler(d.Auth, d.OTPInResponse, d.Logger)
	expenseHandler := handler.NewExpenseHandler(d.Expenses, d.Logger)
	gate := middleware.JWTAuthMiddleware(d.Auth, middleware.WithGateLogger(d.Logger))

	api := r.Group(d.APIPrefix)
	authHandler.RegisterAuthRoutes(api, d.Auth)
	expenseHandler.RegisterExpenseRoutes(api, gate)
	if d.LegacyPublicExpenses {
		d.Logger.Warn("legacy public expense routes enabled, expense data is readable without authentication")
		expenseHandler.RegisterPublicRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})
	return r
}

func health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "unhealthy"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "healthy"})
	}
}
