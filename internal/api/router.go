package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/catalogsync/internal/httputil"
	"github.com/persistorai/catalogsync/internal/middleware"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log     *logrus.Logger
	DB      Pinger
	Tracker *Tracker
	Version string
}

// NewRouter builds the gin engine for the operational endpoint.
func NewRouter(deps *RouterDeps) *gin.Engine {
	if deps.Tracker == nil {
		deps.Tracker = NewTracker()
	}

	r := gin.New()
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())

	health := NewHealthHandler(deps.DB, deps.Tracker, deps.Log, deps.Version)
	r.GET("/healthz", health.Liveness)
	r.GET("/status", health.Status)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		httputil.RespondError(c, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.NoMethod(func(c *gin.Context) {
		httputil.RespondError(c, http.StatusMethodNotAllowed, "method_not_allowed", "endpoint is read-only")
	})

	return r
}
