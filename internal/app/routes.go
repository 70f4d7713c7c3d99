package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/edumorph/core/internal/middleware"
	"github.com/edumorph/core/internal/modules/health"
	"github.com/edumorph/core/internal/modules/lesson"
	"github.com/edumorph/core/internal/modules/servertime"
	pkgredis "github.com/edumorph/core/internal/pkg/redis"
	"github.com/edumorph/core/internal/pkg/response"
	"github.com/edumorph/core/internal/pkg/taskqueue"
	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes(rc *pkgredis.Client, taskSvc *taskqueue.Service) {
	r := a.router
	db := a.db

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":     "edumorph-core",
		"version":  "1.0.0",
		"homepage": "https://github.com/edumorph/core",
		"issues":   "https://github.com/edumorph/core/issues",
	}

	// Rate limiting and idempotence run on every route (requires Redis).
	r.Use(middleware.RateLimit(rc.Raw()))
	r.Use(middleware.Idempotence(rc.Raw()))

	api := r.Group(apiPrefix)
	api.Use(middleware.HTTPCache(rc.Raw(), middleware.HTTPCacheOptions{
		TTL:       15 * time.Second,
		Disable:   a.cfg.IsDev(),
		SkipPaths: httpCacheSkipPaths(apiPrefix),
	}))

	health.RegisterRoutes(api, db, rc, a.sched)
	servertime.RegisterRoutes(api)

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptimeMs := time.Since(a.startTime()).Milliseconds()
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptimeMs,
			"humanize":  humanizeDuration(time.Duration(uptimeMs) * time.Millisecond),
		})
	})

	api.GET("/clean_cache", func(c *gin.Context) {
		deleted, err := middleware.PurgeHTTPCache(c.Request.Context(), rc.Raw())
		if err != nil {
			response.InternalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": deleted})
	})

	lessonSvc := lesson.NewService(db, rc, taskSvc, a.pipe, defaultArtifactOptions(a.cfg), a.logger)
	lesson.NewHandler(lessonSvc, taskSvc, a.cfg.UploadMaxBytes()).RegisterRoutes(api)
}

func httpCacheSkipPaths(prefix string) []string {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if p == "" {
		p = "/api/v1"
	}
	return []string{
		p + "/uptime",
		p + "/clean_cache",
		p + "/server-time",
		p + "/health*",
		p + "/tasks*",
		p + "/lessons*",
	}
}
