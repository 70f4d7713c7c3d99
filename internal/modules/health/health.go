package health

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/edumorph/core/internal/pkg/cron"
	"github.com/edumorph/core/internal/pkg/nativelog"
	pkgredis "github.com/edumorph/core/internal/pkg/redis"
	"github.com/edumorph/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type logItem struct {
	Size     string `json:"size"`
	Filename string `json:"filename"`
	Created  int64  `json:"created"`
}

// RegisterRoutes mounts the liveness probe plus cron and log inspection
// endpoints.
func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, rc *pkgredis.Client, sched *cron.Scheduler) {
	rg.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		dbOK := err == nil && sqlDB.Ping() == nil

		redisOK := rc != nil
		if redisOK {
			redisOK = rc.Raw().Ping(c.Request.Context()).Err() == nil
		}

		status := "ok"
		code := http.StatusOK
		if !dbOK || !redisOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":   status,
			"database": dbOK,
			"redis":    redisOK,
		})
	})

	cronGroup := rg.Group("/health/cron")
	{
		cronGroup.GET("", func(c *gin.Context) {
			items := sched.List()
			byName := make(map[string]cron.ListItem, len(items))
			for _, item := range items {
				byName[item.Name] = item
			}
			response.OK(c, byName)
		})

		cronGroup.POST("/run/:name", func(c *gin.Context) {
			if err := sched.Run(c.Request.Context(), c.Param("name")); err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, gin.H{"message": "job triggered"})
		})

		cronGroup.GET("/task/:name", func(c *gin.Context) {
			result, err := sched.GetTask(c.Param("name"))
			if err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, result)
		})
	}

	logGroup := rg.Group("/health/log")
	{
		logGroup.GET("/list", func(c *gin.Context) {
			logDir := nativelog.ResolveDir()

			entries, err := os.ReadDir(logDir)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					response.OK(c, []logItem{})
					return
				}
				response.BadRequest(c, "log dir not exists")
				return
			}

			items := make([]logItem, 0, len(entries))
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					continue
				}
				items = append(items, logItem{
					Size:     formatByteSize(info.Size()),
					Filename: entry.Name(),
					Created:  info.ModTime().UnixMilli(),
				})
			}

			sort.Slice(items, func(i, j int) bool {
				return items[i].Created > items[j].Created
			})
			response.OK(c, items)
		})

		logGroup.GET("/stream", streamLogs)

		logGroup.GET("", func(c *gin.Context) {
			filename, ok := sanitizeLogFilename(c.Query("filename"))
			if !ok {
				response.UnprocessableEntity(c, "filename must be string")
				return
			}

			data, err := os.ReadFile(filepath.Join(nativelog.ResolveDir(), filename))
			if err != nil {
				response.BadRequest(c, "log file not exists")
				return
			}
			c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
		})

		logGroup.DELETE("", func(c *gin.Context) {
			filename, ok := sanitizeLogFilename(c.Query("filename"))
			if !ok {
				response.UnprocessableEntity(c, "filename must be string")
				return
			}

			target := filepath.Join(nativelog.ResolveDir(), filename)
			today := filepath.Join(nativelog.ResolveDir(), nativelog.TodayFilename(time.Now()))
			if filepath.Clean(target) == filepath.Clean(today) {
				// The active file stays open for appends, truncate instead.
				if err := os.WriteFile(target, []byte(""), 0o644); err != nil && !errors.Is(err, os.ErrNotExist) {
					response.InternalError(c, err)
					return
				}
			} else if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
				response.InternalError(c, err)
				return
			}
			response.NoContent(c)
		})
	}
}

// streamLogs pushes realtime log frames over SSE until the client leaves.
func streamLogs(c *gin.Context) {
	id, ch := nativelog.Subscribe(0)
	defer nativelog.Unsubscribe(id)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case frame, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("log", frame)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func sanitizeLogFilename(raw string) (string, bool) {
	filename := filepath.Base(strings.TrimSpace(raw))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return "", false
	}
	return filename, true
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
