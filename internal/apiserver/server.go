package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/medlinkx/medlinkx/internal/apiserver/handler"
	"github.com/medlinkx/medlinkx/internal/apiserver/middleware"
	"github.com/medlinkx/medlinkx/internal/auth/jwt"
	"github.com/medlinkx/medlinkx/internal/common/config"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/tenancy"
	"github.com/medlinkx/medlinkx/pkg/metrics"
	"github.com/medlinkx/medlinkx/pkg/version"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Server is the HTTP surface over a tenancy.Service
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	router     *gin.Engine
}

// NewRouter builds the gin engine with middleware and routes. m may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, svc *tenancy.Service, jwtSvc *jwt.Service, m *metrics.Metrics) *gin.Engine {
	errs := errorx.NewErrorHandler(logger)
	h := handler.NewHandler(logger, svc, m, errs)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(logger))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	if m != nil {
		r.Use(m.Middleware())
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version.Get(),
			"sites":   svc.Sites.Len(),
		})
	})

	api := r.Group("/api", middleware.JWTAuthMiddleware(jwtSvc, errs))
	{
		api.GET("/sites", h.ListSites)
		api.GET("/sites/:id", h.GetSite)
		api.POST("/sites", h.CreateSite)
		api.PUT("/sites/:id", h.UpdateSite)
		api.DELETE("/sites/:id", h.DeleteSite)

		api.GET("/access", h.ListRules)
		api.GET("/access/:userId", h.GetRule)
		api.POST("/access", h.CreateRule)
		api.PUT("/access/:userId", h.UpdateRule)
		api.DELETE("/access/:userId", h.DeleteRule)
		api.POST("/access/:userId/sites/:siteId", h.GrantSite)
		api.DELETE("/access/:userId/sites/:siteId", h.RevokeSite)

		api.GET("/selection", h.GetSelection)
		api.PUT("/selection/site", h.SelectSite)
		api.PUT("/selection/business-unit", h.SelectBusinessUnit)

		api.GET("/me/sites", h.MySites)
	}
	return r
}

func New(cfg *config.Config, logger *zap.Logger, svc *tenancy.Service, jwtSvc *jwt.Service, m *metrics.Metrics) *Server {
	router := NewRouter(cfg, logger, svc, jwtSvc, m)
	return &Server{
		logger: logger.Named("apiserver"),
		router: router,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.APIServer.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting apiserver", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down apiserver")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down apiserver: %w", err)
	}
	return <-errCh
}
