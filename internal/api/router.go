package api

import (
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"office-queue-backend/config"
	"office-queue-backend/internal/mw"
)

// NewRouter creates and configures the Gin router.
func NewRouter(deps Deps, server config.ServerConfig, simulation bool) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(deps)

	rateLimiter := mw.RateLimiter(rate.Limit(server.RateLimitPerSec), server.RateLimitBurst)

	// Status responses change every tick; a short TTL absorbs polling
	// bursts without serving stale state for long.
	ttl := time.Duration(server.CacheTTLSeconds) * time.Second
	cacheStore := gocache.New(ttl, 10*time.Minute)
	caching := mw.Cache(cacheStore, ttl, "/api/events")

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", caching, handler.GetStatus)
		api.GET("/events", handler.StreamEvents)
		api.GET("/queue", caching, handler.GetQueue)
		api.GET("/users", caching, handler.GetUsers)
		api.POST("/reservations", handler.PostReservation)
		api.POST("/button", handler.PressButton)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		if simulation {
			api.POST("/sim/sensors", handler.PostSimSensors)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/login", handler.PostLogin)

			authed := admin.Group("")
			authed.Use(handler.RequireAdmin())
			{
				authed.POST("/logout", handler.PostLogout)
				authed.GET("/session", handler.GetSession)
				authed.POST("/reset", handler.PostReset)
				authed.POST("/clear_queue", handler.PostClearQueue)
				authed.POST("/force_unlock", handler.PostForceUnlock)
				authed.GET("/config", handler.GetConfig)
				authed.PUT("/config", handler.PutConfig)
				authed.DELETE("/config", handler.DeleteConfig)
				authed.GET("/stats", handler.GetStats)
				authed.POST("/users", handler.PostUser)
				authed.PUT("/users/:code", handler.PutUser)
				authed.DELETE("/users/:code", handler.DeleteUser)
			}
		}
	}

	return r
}
