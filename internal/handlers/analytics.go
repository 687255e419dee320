package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "github.com/taskhub/backend/internal/errors"
	"github.com/taskhub/backend/internal/services"
)

// AnalyticsHandler exposes the admin reporting endpoints.
type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// CompletionStats returns the completion trend over the requested window.
// Query parameters: period (day|week|month, default week), count (default 12).
func (h *AnalyticsHandler) CompletionStats(c *gin.Context) {
	period, count, ok := trendWindow(c)
	if !ok {
		return
	}

	points, err := h.analyticsService.CompletionStats(period, count, time.Now())
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": points})
}

// TaskTrends returns paired creation/completion series over one window.
func (h *AnalyticsHandler) TaskTrends(c *gin.Context) {
	period, count, ok := trendWindow(c)
	if !ok {
		return
	}

	points, err := h.analyticsService.TaskTrends(period, count, time.Now())
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": points})
}

// WorkloadDistribution returns the open-task load per assignee.
func (h *AnalyticsHandler) WorkloadDistribution(c *gin.Context) {
	entries, err := h.analyticsService.WorkloadDistribution()
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workload": entries})
}

// DepartmentPerformance returns per-department aggregates.
func (h *AnalyticsHandler) DepartmentPerformance(c *gin.Context) {
	entries, err := h.analyticsService.DepartmentPerformance()
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": entries})
}

// UserPerformance returns per-user completion performance.
func (h *AnalyticsHandler) UserPerformance(c *gin.Context) {
	entries, err := h.analyticsService.UserPerformance()
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": entries})
}

// PriorityDistribution returns the priority/status breakdown.
func (h *AnalyticsHandler) PriorityDistribution(c *gin.Context) {
	groups, err := h.analyticsService.PriorityDistribution()
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priorities": groups})
}

// OverdueAnalysis returns the overdue breakdown per department and user.
func (h *AnalyticsHandler) OverdueAnalysis(c *gin.Context) {
	analysis, err := h.analyticsService.AnalyzeOverdue(time.Now())
	if err != nil {
		respondAnalyticsError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func trendWindow(c *gin.Context) (services.TrendPeriod, int, bool) {
	period := services.TrendPeriod(c.DefaultQuery("period", string(services.PeriodWeek)))

	count, err := strconv.Atoi(c.DefaultQuery("count", "12"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid count")
		return "", 0, false
	}

	return period, count, true
}

func respondAnalyticsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPeriod),
		errors.Is(err, services.ErrInvalidCount):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
