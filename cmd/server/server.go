package main

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/neuroselftrack/docs"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/cache"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/config"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/errors"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/frontend"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/monitoring"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/privacy"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/ratelimit"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/security"
)

const version = "1.0.0"

// server holds the services shared by all handlers.
type server struct {
	cfg      config.Config
	db       *database.DB
	repo     *database.Repository
	analyzer *analysis.Analyzer
	privacy  *privacy.Service
	redis    *cache.RedisClient
	store    cache.Store
	results  *cache.ResultCache
	limiter  *ratelimit.RateLimiter
	security *security.SecurityMiddleware
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger

	dashboard fs.FS
	index     *template.Template
}

func newServer(cfg config.Config, logger *monitoring.Logger) (*server, error) {
	db, err := database.NewDB(cfg.DataDir, cfg.DBFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := database.NewRepository(db)

	analyzer, err := analysis.NewAnalyzer(repo, cfg.Analysis, logger.Logger)
	if err != nil {
		errors.SafeClose(db, "database")
		return nil, err
	}

	// A failed ping leaves a disabled client; caching and rate limiting
	// continue in memory.
	redisClient, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without it", "error", err)
	}

	dist, err := frontend.GetDistFS()
	if err != nil {
		errors.SafeClose(db, "database")
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	index, err := frontend.LoadIndexTemplate(dist)
	if err != nil {
		errors.SafeClose(db, "database")
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	store := cache.NewStore(redisClient, cfg.CacheTTL)
	results, err := cache.NewResultCache(store, logger, metrics)
	if err != nil {
		errors.SafeClose(db, "database")
		errors.SafeClose(redisClient, "redis")
		return nil, err
	}

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = cfg.AllowedOrigins
	securityConfig.MaxUploadBytes = cfg.MaxUploadBytes
	securityConfig.RequestTimeout = cfg.RequestTimeout

	return &server{
		cfg:      cfg,
		db:       db,
		repo:     repo,
		analyzer: analyzer,
		privacy:  privacy.NewService(db, cfg.RetentionDays),
		redis:    redisClient,
		store:    store,
		results:  results,
		limiter:  ratelimit.NewRateLimiter(redisClient, cfg.RateLimit, metrics),
		security: security.NewSecurityMiddleware(securityConfig),
		metrics:  metrics,
		logger:   logger,

		dashboard: dist,
		index:     index,
	}, nil
}

func (s *server) close() {
	s.limiter.Close()
	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
	}
	errors.SafeClose(s.redis, "redis")
	errors.SafeClose(s.db, "database")
}

func (s *server) setupRouter() *gin.Engine {
	r := gin.New()

	// Monitoring first so every request is counted
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger))

	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	r.Use(s.security.SecurityHeaders())
	r.Use(s.security.CORS())
	r.Use(s.security.RequestTimeout)
	r.Use(s.security.ValidateContentType)
	r.Use(s.limiter.IPRateLimitMiddleware())

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/dashboard/") })
	r.GET("/dashboard/*path", security.CSPMiddleware(), frontend.NewDashboardHandler("/dashboard", s.dashboard, s.index))
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(monitoring.PrometheusHandler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ratelimit/status", s.limiter.HandleRateLimitStatus())

	admin := r.Group("/ratelimit", security.LocalOnly)
	admin.DELETE("", s.limiter.HandleResetAll())
	admin.DELETE("/ip/:ip", s.limiter.HandleResetIP())

	users := r.Group("/users")
	users.POST("", s.handleCreateUser)
	users.GET("", s.handleListUsers)

	user := users.Group("/:id", security.ValidateIDParams("id"))
	user.DELETE("", s.handleDeleteUser)
	user.GET("/privacy", s.handlePrivacySummary)
	user.GET("/sessions", s.handleListSessions)
	user.GET("/date-range", s.handleDateRange)

	views := user.Group("", cache.ResponseMiddleware(s.store, s.metrics))
	views.GET("/insights", s.handleInsights)
	views.GET("/recommendations", s.handleRecommendations)
	views.GET("/correlations", s.handleCorrelations)
	views.GET("/summary", s.handleSummary)

	sessions := r.Group("/sessions")
	sessions.POST("", s.security.LimitUploadSize, s.handleLogSession)

	session := sessions.Group("/:id", security.ValidateIDParams("id"))
	session.GET("", s.handleGetSession)
	session.DELETE("", s.handleDeleteSession)
	session.POST("/eeg",
		s.limiter.EndpointRateLimitMiddleware("import", s.cfg.RateLimit.ImportLimitPerMin),
		s.security.LimitUploadSize,
		s.handleImportEEG,
	)
	session.GET("/eeg.edf", s.handleExportEDF)
	session.GET("/analysis",
		s.limiter.EndpointRateLimitMiddleware("analysis", s.cfg.RateLimit.AnalysisLimitPerMin),
		s.handleAnalyze,
	)

	return r
}

// invalidate drops cached analysis results for sessionIDs and the derived
// views of userID.
func (s *server) invalidate(ctx context.Context, userID string, sessionIDs ...string) {
	if len(sessionIDs) > 0 {
		if err := s.results.Invalidate(ctx, sessionIDs...); err != nil {
			s.logger.Warn("Failed to invalidate cached results", "error", err)
		}
	}
	if userID != "" {
		if err := cache.InvalidateUserResponses(ctx, s.store, userID); err != nil {
			s.logger.Warn("Failed to invalidate cached views", "user", privacy.AnonymizeID(userID), "error", err)
		}
	}
}

// purgeExpired removes sessions older than the retention window.
func (s *server) purgeExpired(ctx context.Context, now time.Time) (*privacy.DeletionReport, error) {
	report, err := s.privacy.PurgeOlderThan(ctx, s.cfg.RetentionDays, now)
	if err != nil {
		return nil, err
	}
	if len(report.SessionIDs) > 0 {
		if err := s.results.Invalidate(ctx, report.SessionIDs...); err != nil {
			s.logger.Warn("Failed to invalidate cached results", "error", err)
		}
		if err := cache.InvalidateAllResponses(ctx, s.store); err != nil {
			s.logger.Warn("Failed to invalidate cached views", "error", err)
		}
	}
	s.logger.SystemLogger("retention_purge",
		fmt.Sprintf("removed %d sessions and %d samples", len(report.SessionIDs), report.Samples))
	return report, nil
}
