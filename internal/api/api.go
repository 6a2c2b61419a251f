// internal/api/api.go
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/DanceAddiction/DogShitAEye/internal/analytics"
	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/datastore"
	"github.com/DanceAddiction/DogShitAEye/internal/errors"
	"github.com/DanceAddiction/DogShitAEye/internal/logging"
	"github.com/DanceAddiction/DogShitAEye/internal/observability"
)

// SessionCloser requests an explicit session close, ordered against the
// detection stream. Implemented by the ingest adapter.
type SessionCloser interface {
	EnqueueClose(walkerID uint)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	DS        datastore.Interface
	Settings  *conf.Settings
	Analytics *analytics.Analytics
	Closer    SessionCloser

	apiLogger      *slog.Logger
	apiLoggerClose func() error
	metrics        *observability.Metrics
	startTime      time.Time
}

// New creates a new API controller. Routes are registered immediately.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	a *analytics.Analytics, closer SessionCloser, m *observability.Metrics) *Controller {

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		Analytics: a,
		Closer:    closer,
		metrics:   m,
		startTime: time.Now(),
	}

	var err error
	c.apiLogger, c.apiLoggerClose, err = logging.NewFileLogger("logs/api.log", "api", slog.LevelInfo)
	if err != nil {
		logging.Error("Failed to initialize API file logger", "error", err)
		c.apiLogger = logging.Structured().With("service", "api")
	}

	c.initRoutes()
	return c
}

// Shutdown closes the API log file.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			logging.Error("Failed to close API log file", "error", err)
		}
	}
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Echo.Use(middleware.Recover())

	c.Group = c.Echo.Group("/api/v1")

	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/walkers", c.GetWalkers)
	c.Group.GET("/walkers/:id", c.GetWalker)
	c.Group.POST("/walkers/:id/close", c.CloseWalkerSession)
	c.Group.GET("/stats", c.GetStats)
	c.Group.GET("/analytics/regular", c.GetRegularWalkers)
	c.Group.GET("/analytics/suspicious", c.GetSuspiciousWalkers)
	c.Group.GET("/analytics/schedule", c.GetSchedule)
	c.Group.GET("/analytics/paths", c.GetPathPatterns)
	c.Group.GET("/analytics/heatmap", c.GetHeatmap)
	c.Group.GET("/analytics/coverage", c.GetCoverage)
	c.Group.GET("/images/:filename", c.GetImage)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// HealthCheck reports service liveness and uptime.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(c.startTime).Seconds(),
	})
}

// GetWalkers returns every tracked walker.
func (c *Controller) GetWalkers(ctx echo.Context) error {
	walkers, err := c.DS.GetAllWalkers()
	if err != nil {
		return c.serverError(ctx, err, "Failed to get walkers")
	}
	return ctx.JSON(http.StatusOK, walkers)
}

// GetWalker returns the full report for one walker.
func (c *Controller) GetWalker(ctx echo.Context) error {
	id, err := c.walkerID(ctx)
	if err != nil {
		return err
	}

	report, err := c.Analytics.WalkerReport(id)
	if err != nil {
		if errors.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("walker %d not found", id))
		}
		return c.serverError(ctx, err, "Failed to get walker report")
	}
	return ctx.JSON(http.StatusOK, report)
}

// CloseWalkerSession requests a session close for the walker. The close is
// queued behind in-flight detections, so the response is 202.
func (c *Controller) CloseWalkerSession(ctx echo.Context) error {
	id, err := c.walkerID(ctx)
	if err != nil {
		return err
	}
	if _, err := c.DS.GetWalker(id); err != nil {
		if errors.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("walker %d not found", id))
		}
		return c.serverError(ctx, err, "Failed to get walker")
	}

	c.Closer.EnqueueClose(id)
	c.apiLogger.Info("Queued session close", "walker_id", id)
	return ctx.JSON(http.StatusAccepted, map[string]any{"walker_id": id, "status": "queued"})
}

// GetStats returns the system-wide summary counters.
func (c *Controller) GetStats(ctx echo.Context) error {
	summary, err := c.Analytics.Summary()
	if err != nil {
		return c.serverError(ctx, err, "Failed to get stats")
	}
	return ctx.JSON(http.StatusOK, summary)
}

// GetRegularWalkers returns walkers seen repeatedly within the lookback.
func (c *Controller) GetRegularWalkers(ctx echo.Context) error {
	regulars, err := c.Analytics.RegularWalkers()
	if err != nil {
		return c.serverError(ctx, err, "Failed to get regular walkers")
	}
	return ctx.JSON(http.StatusOK, regulars)
}

// GetSuspiciousWalkers returns frequent walkers never seen with a dog.
func (c *Controller) GetSuspiciousWalkers(ctx echo.Context) error {
	suspicious, err := c.Analytics.SuspiciousWalkers()
	if err != nil {
		return c.serverError(ctx, err, "Failed to get suspicious walkers")
	}
	return ctx.JSON(http.StatusOK, suspicious)
}

// GetSchedule returns session starts per hour of day.
func (c *Controller) GetSchedule(ctx echo.Context) error {
	schedule, err := c.Analytics.Schedule()
	if err != nil {
		return c.serverError(ctx, err, "Failed to get schedule")
	}
	return ctx.JSON(http.StatusOK, schedule)
}

// GetPathPatterns returns camera routes by popularity.
func (c *Controller) GetPathPatterns(ctx echo.Context) error {
	patterns, err := c.Analytics.PathPatterns()
	if err != nil {
		return c.serverError(ctx, err, "Failed to get path patterns")
	}
	return ctx.JSON(http.StatusOK, patterns)
}

// GetHeatmap returns detection counts per camera and hour.
func (c *Controller) GetHeatmap(ctx echo.Context) error {
	heatmap, err := c.Analytics.Heatmap()
	if err != nil {
		return c.serverError(ctx, err, "Failed to get heatmap")
	}
	return ctx.JSON(http.StatusOK, heatmap)
}

// GetCoverage returns total detections per camera.
func (c *Controller) GetCoverage(ctx echo.Context) error {
	coverage, err := c.Analytics.Coverage()
	if err != nil {
		return c.serverError(ctx, err, "Failed to get coverage")
	}
	return ctx.JSON(http.StatusOK, coverage)
}

// GetImage serves a stored evidence image. Filenames are restricted to the
// storage directory; traversal attempts are rejected.
func (c *Controller) GetImage(ctx echo.Context) error {
	filename := ctx.Param("filename")
	if filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filename")
	}
	path := filepath.Join(c.Settings.Images.StoragePath, filename)
	return ctx.File(path)
}

func (c *Controller) walkerID(ctx echo.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid walker id")
	}
	return uint(id), nil
}

func (c *Controller) serverError(ctx echo.Context, err error, msg string) error {
	c.apiLogger.Error(msg,
		"path", ctx.Path(),
		"error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}
