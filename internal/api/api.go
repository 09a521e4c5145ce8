package api

import (
	"net/http"

	"waitlist-server/internal/apierrors"
	"waitlist-server/internal/ratelimit"
	waitlistHandler "waitlist-server/internal/waitlist/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router          *gin.Engine
	waitlistHandler waitlistHandler.Handler
	throttle        *ratelimit.IPThrottle
}

// New wires the routes. A nil throttle disables per-IP throttling.
func New(router *gin.Engine, waitlistHandler waitlistHandler.Handler, throttle *ratelimit.IPThrottle) API {
	return API{
		router:          router,
		waitlistHandler: waitlistHandler,
		throttle:        throttle,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	a.router.POST("/subscribe", a.throttle.Middleware(), a.waitlistHandler.HandleSubscribe)

	a.router.HandleMethodNotAllowed = true
	a.router.NoRoute(func(c *gin.Context) {
		apierrors.Respond(c, apierrors.NotFound(apierrors.CodeNotFound, apierrors.MessageNotFound))
	})
	a.router.NoMethod(func(c *gin.Context) {
		apierrors.Respond(c, apierrors.MethodNotAllowed())
	})
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
