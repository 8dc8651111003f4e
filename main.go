package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/competitor-monitor/backend/compare"
	"github.com/competitor-monitor/backend/fetch"
	"github.com/competitor-monitor/backend/judge"
	"github.com/competitor-monitor/backend/logging"
	"github.com/competitor-monitor/backend/middleware"
	"github.com/competitor-monitor/backend/monitor"
	"github.com/competitor-monitor/backend/notify"
	"github.com/competitor-monitor/backend/stats"
	"github.com/competitor-monitor/backend/store"
	"github.com/competitor-monitor/backend/textdiff"
)

var (
	service     *monitor.Service
	rateLimiter *middleware.RateLimiter

	// pipelineRunning guards against overlapping manual pipeline runs.
	pipelineRunning atomic.Bool
)

func loadEnv() {
	// Try to load .env.development first (for local development)
	if err := godotenv.Load(".env.development"); err != nil {
		// If .env.development doesn't exist, try regular .env
		if err := godotenv.Load(); err != nil {
			log.Info("No .env file found, using environment variables")
		}
	}
}

func setupGinMode() {
	// Set Gin mode based on environment variable
	mode := os.Getenv("GIN_MODE")
	if mode == "" {
		// Default to release mode if not specified
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn("invalid value, using default", "var", key, "value", v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn("invalid value, using default", "var", key, "value", v)
	}
	return fallback
}

func main() {
	// Load environment configuration
	loadEnv()

	// Set up Gin mode
	setupGinMode()

	if os.Getenv("DEV_MODE") == "true" {
		log.SetLevel(log.DebugLevel)
	}

	db, err := store.Open(os.Getenv("DB_PATH"))
	if err != nil {
		log.Fatal("failed to open database", "error", err)
	}
	defer db.Close()

	seedPages(db)

	claude, err := judge.NewClaude()
	if err != nil {
		if errors.Is(err, judge.ErrNoAPIKey) {
			log.Warn("ANTHROPIC_API_KEY not set, AI dimensions will be unavailable")
		} else {
			log.Warn("judge unavailable", "error", err)
		}
		claude = nil
	}

	pipelineStats, err := stats.NewStorage("./data")
	if err != nil {
		log.Fatal("failed to initialize pipeline stats", "error", err)
	}
	defer pipelineStats.Shutdown()

	fetcher := fetch.New(fetch.DefaultConfig())
	defer fetcher.Close()

	service = &monitor.Service{
		Store:        db,
		Fetcher:      fetcher,
		Claude:       claude,
		Slack:        notify.NewSlack(),
		Stats:        pipelineStats,
		ThresholdPct: envFloat("CHANGE_THRESHOLD_PCT", textdiff.DefaultThreshold),
	}

	// Daily pipeline run at the configured UTC hour
	go service.RunDaily(context.Background(), envInt("SCHEDULE_HOUR", 6))

	rateLimiter = middleware.NewRateLimiter(2, 5) // 2 requests per second, bucket size of 5

	// Initialize statistics
	requestStats := logging.Initialize()

	// Initialize Gin router
	r := gin.Default()

	// Add middlewares
	r.Use(middleware.ErrorHandler())
	r.Use(rateLimiter.RateLimit())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.Use(middleware.StatsMiddleware(requestStats))

	// API routes
	api := r.Group("/api")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})

		// Comparison and diff endpoints
		api.POST("/compare", comparePages)
		api.POST("/diff", diffTexts)
		api.POST("/run", runPipeline)

		// Statistics endpoint
		api.GET("/statistics", func(c *gin.Context) {
			result := requestStats.GetStatistics()
			result["pipeline"] = pipelineStats.GetCurrentStats()
			c.JSON(http.StatusOK, result)
		})
	}

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Get port from environment variable or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082" // Default port
	}

	log.Info("Server starting", "addr", "http://localhost:"+port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server", "error", err)
	}
}

// seedPages loads the page pair configuration and upserts it into the
// database. Missing config is not fatal; pairs may already be seeded.
func seedPages(db *store.Store) {
	path := os.Getenv("PAGES_CONFIG")
	if path == "" {
		path = "pages.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("no page config loaded", "path", path, "error", err)
		return
	}
	pairs, err := store.LoadPairs(data)
	if err != nil {
		log.Fatal("invalid page config", "path", path, "error", err)
	}
	if err := db.SeedPages(context.Background(), pairs); err != nil {
		log.Fatal("failed to seed pages", "error", err)
	}
	log.Info("page pairs seeded", "count", len(pairs), "path", path)
}

func comparePages(c *gin.Context) {
	var request struct {
		Slug       string               `json:"slug" binding:"required"`
		Mine       *compare.PageSignals `json:"mine"`
		Competitor *compare.PageSignals `json:"competitor"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid comparison request: " + err.Error(),
		})
		return
	}
	c.Set("slug", request.Slug)

	// With explicit signals, score them directly. Otherwise fall back to
	// the latest stored snapshots for the slug.
	if request.Mine != nil && request.Competitor != nil {
		report := compare.ComparePages(c.Request.Context(), service.Judge(),
			request.Slug, *request.Mine, *request.Competitor)
		c.JSON(http.StatusOK, report)
		return
	}

	report, err := service.CompareSlug(c.Request.Context(), request.Slug)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

func diffTexts(c *gin.Context) {
	var request struct {
		OldText      string   `json:"old_text"`
		NewText      string   `json:"new_text"`
		ThresholdPct *float64 `json:"threshold_pct"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid diff request: " + err.Error(),
		})
		return
	}

	threshold := service.ThresholdPct
	if request.ThresholdPct != nil {
		threshold = *request.ThresholdPct
	}

	result := textdiff.Compute(request.OldText, request.NewText)
	result.IsSignificant = textdiff.IsSignificant(result.ChangePct, threshold)
	c.JSON(http.StatusOK, result)
}

func runPipeline(c *gin.Context) {
	if !pipelineRunning.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "A pipeline run is already in progress",
		})
		return
	}

	// The full run fetches every page through a headless browser and can
	// take minutes, so it is detached from the request.
	go func() {
		defer pipelineRunning.Store(false)
		if _, err := service.RunPipeline(context.Background()); err != nil {
			log.Error("manual pipeline run failed", "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status": "pipeline run started",
	})
}
