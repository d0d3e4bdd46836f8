// Package api is the HTTP surface used by the Telegram mini-app: reports,
// meal edits, questionnaire saves and a websocket for change notifications.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"telegram-diet-diary/internal/models"
	"telegram-diet-diary/internal/report"
	"telegram-diet-diary/internal/storage"
)

// ProfileNotifier is told about saved questionnaires, e.g. to push the bot menu.
type ProfileNotifier interface {
	ProfileSaved(ctx context.Context, u *models.User)
}

type Server struct {
	store      storage.Store
	reports    *report.Aggregator
	hub        *Hub
	notifier   ProfileNotifier
	corsOrigin string
}

func New(store storage.Store, reports *report.Aggregator, hub *Hub, corsOrigin string) *Server {
	if hub == nil {
		hub = NewHub()
	}
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	return &Server{store: store, reports: reports, hub: hub, corsOrigin: corsOrigin}
}

// SetNotifier installs the hook called after a questionnaire save.
func (s *Server) SetNotifier(n ProfileNotifier) { s.notifier = n }

// Hub exposes the realtime hub so other writers (the bot) can publish.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(), gin.Recovery(), s.cors())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := r.Group("/api")
	api.Use(noStore())
	{
		rep := api.Group("/report")
		rep.GET("/calendar", s.getCalendar)
		rep.GET("/day", s.getDay)
		rep.GET("/period", s.getPeriod)

		api.GET("/meals", s.listMeals)
		api.POST("/meals", s.createMeal)
		api.PATCH("/meals/:id", s.updateMeal)
		api.DELETE("/meals/:id", s.deleteMeal)

		api.POST("/save", s.saveProfile)

		api.GET("/ws", s.realtime)
	}
	return r
}

// ---------- middleware ------------------------------------------------------

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("request_id", c.GetString("requestID")).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", s.corsOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func noStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
