// Package api builds the HTTP surface: token and trade queries, curve
// quotes, the activity feed, the Chainhook receiver and Prometheus
// metrics.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stackspad/internal/api/handler"
	"stackspad/internal/config"
	"stackspad/internal/ingest"
	"stackspad/internal/observability"
	"stackspad/internal/storage"
	"stackspad/internal/webhook"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Tokens   storage.TokenStore
	Trades   storage.TradeStore
	Activity storage.ActivityStore
	Runner   *ingest.Runner
	Webhook  *webhook.Handler
	Cfg      *config.Config
	Storage  string // "postgres" or "memory", reported by /api/health
}

// SetupRouter creates and configures the Gin engine with all routes.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	tokenH := handler.NewTokenHandler(deps.Tokens, deps.Trades)
	quoteH := handler.NewQuoteHandler(deps.Tokens)
	activityH := handler.NewActivityHandler(deps.Activity, deps.Trades)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ok",
				"storage":   deps.Storage,
				"network":   deps.Cfg.Network,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})

		tokens := api.Group("/tokens")
		{
			tokens.GET("", tokenH.List)
			tokens.GET("/trending", tokenH.Trending)
			tokens.GET("/:identifier", tokenH.Get)
			tokens.GET("/:identifier/trades", tokenH.Trades)
			tokens.GET("/:identifier/progress", tokenH.Progress)
		}

		quote := api.Group("/quote")
		{
			quote.GET("/buy", quoteH.Buy)
			quote.GET("/sell", quoteH.Sell)
		}

		api.GET("/activity", activityH.List)
		api.GET("/leaderboard", activityH.Leaderboard)

		if deps.Runner != nil {
			syncH := handler.NewSyncHandler(deps.Runner)
			api.POST("/sync", syncH.Trigger)
		}

		if deps.Webhook != nil {
			api.POST("/chainhook", deps.Webhook.Handle)
		}
	}

	r.GET("/metrics", gin.WrapH(observability.Handler()))

	return r
}

// corsMiddleware allows browser frontends on any origin; the API is
// read-only apart from the authenticated webhook.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+webhook.SecretHeader)
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
