package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/msrpctl/internal/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// SessionSource returns the current session snapshot. ok is false when no session exists.
type SessionSource func() (snapshot any, ok bool)

type AdminConfig struct {
	ID          string
	Addr        string
	CorsOrigins []string
	// Token guards /session when set.
	Token   string
	Session SessionSource
	Ready   func() bool
}

// Admin is the HTTP side surface of a running endpoint: health, readiness, metrics and session state.
type Admin struct {
	ID       string
	Addr     string
	Appeared time.Time

	router *gin.Engine
	server *http.Server
	source SessionSource
	ready  func() bool
	token  string
}

func NewAdmin(cfg AdminConfig) *Admin {
	RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(AdminLogger(log.Logger, cfg.ID))
	r.Use(AdminMetrics(cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		ID:       cfg.ID,
		Addr:     cfg.Addr,
		Appeared: time.Now(),
		router:   r,
		source:   cfg.Session,
		ready:    cfg.Ready,
		token:    cfg.Token,
	}
	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.registerRoutes()
	return a
}

func (a *Admin) Router() *gin.Engine {
	return a.router
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.Appeared).String(),
			"service": a.ID,
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/ready", func(c *gin.Context) {
		ready := a.ready == nil || a.ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(a.Appeared).String(),
			"service": a.ID,
		})
	})

	handlers := []gin.HandlerFunc{a.session}
	if a.token != "" {
		handlers = append([]gin.HandlerFunc{auth.Require(auth.StaticToken{Token: a.token})}, handlers...)
	}
	a.router.GET("/session", handlers...)
}

func (a *Admin) session(c *gin.Context) {
	if a.source == nil {
		c.Set(sessionFoundKey, false)
		c.JSON(http.StatusNotFound, gin.H{"error": "no session"})
		return
	}
	snap, ok := a.source()
	c.Set(sessionFoundKey, ok)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Serve blocks until Shutdown.
func (a *Admin) Serve() error {
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *Admin) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
