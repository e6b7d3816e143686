package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rampline/internal/config"
	"github.com/smallbiznis/rampline/internal/draft"
	draftdomain "github.com/smallbiznis/rampline/internal/draft/domain"
	"github.com/smallbiznis/rampline/internal/observability"
	obsmiddleware "github.com/smallbiznis/rampline/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rampline/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rampline/internal/observability/tracing"
	"github.com/smallbiznis/rampline/internal/pricing"
	"github.com/smallbiznis/rampline/internal/salescloud"
	"github.com/smallbiznis/rampline/internal/syncer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	salescloud.Module,
	pricing.Module,
	syncer.Module,
	draft.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, registry)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// Saver drives a full quote save.
type Saver interface {
	Save(ctx context.Context, req syncer.SaveRequest) (syncer.SaveResult, error)
}

// CatalogReader serves bundle catalogs for the pricing endpoints.
type CatalogReader interface {
	Catalog(ctx context.Context, productID string) (salescloud.Catalog, error)
}

type ServerParam struct {
	fx.In

	Engine  *gin.Engine
	Cfg     config.Config
	Drafts  draftdomain.Service
	Syncer  *syncer.Service
	Pricing *pricing.Service
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	drafts  draftdomain.Service
	saver   Saver
	catalog CatalogReader
}

func NewServer(p ServerParam) *Server {
	s := &Server{
		engine:  p.Engine,
		cfg:     p.Cfg,
		drafts:  p.Drafts,
		saver:   p.Syncer,
		catalog: p.Pricing,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	quotes := v1.Group("/quotes/:quoteId")
	quotes.POST("/schedule", s.BuildSchedule)
	quotes.GET("/draft", s.GetDraft)
	quotes.PUT("/draft", s.PutDraft)
	quotes.PATCH("/draft/tiers", s.UpdateDraftTier)
	quotes.DELETE("/draft", s.DeleteDraft)
	quotes.GET("/preview", s.PreviewQuote)
	quotes.POST("/save", s.SaveQuote)

	v1.GET("/catalog/:productId", s.GetCatalog)
}
