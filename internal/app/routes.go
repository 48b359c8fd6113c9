package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/middleware"
	authmod "github.com/techknowlogia/core/internal/modules/auth/auth"
	"github.com/techknowlogia/core/internal/modules/content/post"
	"github.com/techknowlogia/core/internal/modules/stats/views"
	"github.com/techknowlogia/core/internal/modules/syndication/subscribe"
	"github.com/techknowlogia/core/internal/modules/system/core/health"
	"github.com/techknowlogia/core/internal/pkg/response"
)

const apiPrefix = "/api"

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFoundMsg(c, "Not found")
	})
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, http.StatusMethodNotAllowed, "Method not allowed")
	})

	healthH := health.NewHandler(ServiceName, a.sched, a.mailer, a.logger)
	for name, ping := range a.pingers {
		healthH.AddCheck(name, ping)
	}
	healthH.RegisterPublic(r)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	api := r.Group(apiPrefix)

	var subscribeMW []gin.HandlerFunc
	var counter views.Counter
	if a.redis != nil {
		subscribeMW = append(subscribeMW, middleware.RateLimit(a.redis, "subscribe", a.cfg.Redis.SubscribeRate, a.logger))
		counter = views.NewRedisCounter(a.redis)
	} else {
		counter = views.NewMemoryCounter()
	}

	subscribe.NewHandler(a.subscribe, a.cfg.Site.URL, a.logger).RegisterRoutes(api, subscribeMW...)
	views.NewHandler(counter, a.metrics, a.logger).RegisterRoutes(api)
	post.NewHandler(a.library).RegisterRoutes(api)

	if a.auth == nil {
		return
	}
	authMW := middleware.AdminAuth(a.issuer)
	authmod.NewHandler(a.auth).RegisterRoutes(api, authMW)
	subscribe.NewAdminHandler(a.subscribe, a.logger).RegisterRoutes(api, authMW)
	healthH.RegisterAdmin(api, authMW)
}
