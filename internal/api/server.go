// Package api exposes the read-only HTTP surface: health, metrics, and the
// tracked product inventory.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/store"
)

// Server serves the observability endpoints next to the monitor loop.
type Server struct {
	store  *store.Store
	logger *slog.Logger
	http   *http.Server
}

// NewServer builds the gin router and wraps it in an http.Server on addr.
func NewServer(addr string, st *store.Store, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:  st,
		logger: logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/products", s.handleListProducts)
		apiGroup.GET("/products/:id/transitions", s.handleListTransitions)
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown. It returns nil on graceful close.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListProducts(c *gin.Context) {
	products, err := s.store.ListProducts(c.Request.Context())
	if err != nil {
		s.logger.Error("list products failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(products), "products": products})
}

func (s *Server) handleListTransitions(c *gin.Context) {
	productID := c.Param("id")
	transitions, err := s.store.ListTransitions(c.Request.Context(), productID)
	if err != nil {
		s.logger.Error("list transitions failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": productID, "transitions": transitions})
}
