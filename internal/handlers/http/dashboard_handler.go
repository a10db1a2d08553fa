package http

import (
	"net/http"
	"strings"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
	"cctvdash/internal/core/services"
	"cctvdash/pkg/errors"
	"cctvdash/pkg/tracing"
	"cctvdash/pkg/validation"

	"github.com/gin-gonic/gin"
)

// SummaryProvider exposes the in-process dashboard counters.
type SummaryProvider interface {
	Summary() services.MetricsSummary
}

// RouteGuards are attached to the read-only and the mutating route groups.
// Both are empty when auth is disabled.
type RouteGuards struct {
	View    []gin.HandlerFunc
	Operate []gin.HandlerFunc
}

type DashboardHandler struct {
	service ports.DashboardService
	metrics SummaryProvider
}

var _ ports.HTTPHandler = (*DashboardHandler)(nil)

// NewDashboardHandler creates the operator API handler. metrics may be nil,
// in which case the summary route answers 503.
func NewDashboardHandler(service ports.DashboardService, metrics SummaryProvider) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		metrics: metrics,
	}
}

// SetupRoutes registers the /api/v1 routes. Read routes run guards.View,
// commands run guards.Operate.
func (h *DashboardHandler) SetupRoutes(router gin.IRouter, guards RouteGuards) {
	api := router.Group("/api/v1")

	read := api.Group("", guards.View...)
	{
		read.GET("/snapshot", h.GetSnapshot)
		read.GET("/cameras", h.ListCameras)
		read.GET("/employees", h.ListEmployees)
		read.GET("/employees/:id", h.GetEmployee)
		read.GET("/metrics/summary", h.GetMetricsSummary)
	}

	write := api.Group("", guards.Operate...)
	{
		write.POST("/cameras", h.AddCamera)
		write.POST("/cameras/:id/select", h.SelectCamera)
		write.PUT("/cameras/:id/status", h.UpdateCameraStatus)
		write.POST("/stream/stop", h.StopStream)

		write.POST("/employees", h.AddEmployee)
		write.DELETE("/employees/:id", h.RemoveEmployee)
		write.POST("/employees/:id/track", h.TrackEmployee)

		write.POST("/ai/start", h.StartAI)
		write.POST("/ai/stop", h.StopAI)
		write.POST("/refresh", h.Refresh)
	}
}

func (h *DashboardHandler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Snapshot())
}

func (h *DashboardHandler) ListCameras(c *gin.Context) {
	snap := h.service.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"cameras":  snap.Cameras,
		"selected": snap.Session.CameraID,
		"state":    snap.Session.State,
	})
}

type addCameraRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	RTSPURL  string `json:"rtspUrl"`
	IsActive bool   `json:"isActive"`
	Status   string `json:"status"`
}

// AddCamera registers a camera. The address is not validated here: an
// unusable address is accepted and surfaces as an error when selected.
func (h *DashboardHandler) AddCamera(c *gin.Context) {
	var req addCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID != "" {
		if err := validation.ValidateEntityID(req.ID); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if strings.TrimSpace(req.Name) != "" {
		if err := validation.ValidateDisplayName(req.Name); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	id, err := h.service.AddCamera(c.Request.Context(), domain.CameraDescriptor{
		ID:       domain.CameraID(req.ID),
		Name:     req.Name,
		Address:  req.Address,
		RTSPURL:  req.RTSPURL,
		IsActive: req.IsActive,
		Status:   req.Status,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *DashboardHandler) SelectCamera(c *gin.Context) {
	id := domain.CameraID(c.Param("id"))
	tracing.AddSpanAttributes(c.Request.Context(),
		tracing.OperatorCommandKey.String("select_camera"),
		tracing.CameraIDKey.String(string(id)),
	)

	outcome, err := h.service.SelectCamera(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	snap := h.service.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"camera_id": id,
		"outcome":   outcome,
		"session":   snap.Session,
	})
}

func (h *DashboardHandler) UpdateCameraStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("status is required"))
		return
	}

	id := domain.CameraID(c.Param("id"))
	status := domain.ParseCameraStatus(req.Status)
	if err := h.service.UpdateCameraStatus(c.Request.Context(), id, status); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"camera_id": id, "status": status})
}

func (h *DashboardHandler) StopStream(c *gin.Context) {
	tracing.AddSpanAttributes(c.Request.Context(), tracing.OperatorCommandKey.String("stop_stream"))
	if err := h.service.StopStream(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListEmployees supports ?q= for a name or location search and ?status= for
// presence filtering.
func (h *DashboardHandler) ListEmployees(c *gin.Context) {
	query := c.Query("q")

	var status domain.PresenceStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		switch domain.PresenceStatus(strings.ToLower(raw)) {
		case domain.PresencePresent, domain.PresenceAbsent:
			status = domain.PresenceStatus(strings.ToLower(raw))
		default:
			c.Error(errors.NewInvalidInputError("status must be present or absent"))
			return
		}
	}

	employees, err := h.service.SearchEmployees(c.Request.Context(), query, status)
	if err != nil {
		c.Error(err)
		return
	}
	if employees == nil {
		employees = []domain.Employee{}
	}

	c.JSON(http.StatusOK, gin.H{
		"employees": employees,
		"stats":     h.service.Snapshot().Stats,
	})
}

func (h *DashboardHandler) GetEmployee(c *gin.Context) {
	emp, err := h.service.Employee(c.Request.Context(), domain.EmployeeID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, emp)
}

type addEmployeeRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	LastSeen string `json:"lastSeen"`
	Location string `json:"location"`
}

func (h *DashboardHandler) AddEmployee(c *gin.Context) {
	var req addEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID != "" {
		if err := validation.ValidateEntityID(req.ID); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}
	if err := validation.ValidateDisplayName(req.Name); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	id, err := h.service.AddEmployee(c.Request.Context(), domain.EmployeeDescriptor{
		ID:       domain.EmployeeID(req.ID),
		Name:     req.Name,
		Status:   req.Status,
		LastSeen: req.LastSeen,
		Location: req.Location,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *DashboardHandler) RemoveEmployee(c *gin.Context) {
	if err := h.service.RemoveEmployee(c.Request.Context(), domain.EmployeeID(c.Param("id"))); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TrackEmployee only queues the lookup; the camera switch shows up in a
// later snapshot.
func (h *DashboardHandler) TrackEmployee(c *gin.Context) {
	id := domain.EmployeeID(c.Param("id"))
	tracing.AddSpanAttributes(c.Request.Context(),
		tracing.OperatorCommandKey.String("track_employee"),
		tracing.EmployeeIDKey.String(string(id)),
	)

	outcome, err := h.service.TrackEmployee(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"employee_id": id,
		"outcome":     outcome,
	})
}

func (h *DashboardHandler) StartAI(c *gin.Context) {
	tracing.AddSpanAttributes(c.Request.Context(), tracing.OperatorCommandKey.String("start_ai"))
	if err := h.service.StartAI(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ai_active": true})
}

func (h *DashboardHandler) StopAI(c *gin.Context) {
	tracing.AddSpanAttributes(c.Request.Context(), tracing.OperatorCommandKey.String("stop_ai"))
	if err := h.service.StopAI(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ai_active": false})
}

func (h *DashboardHandler) Refresh(c *gin.Context) {
	if err := h.service.Refresh(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reloading"})
}

func (h *DashboardHandler) GetMetricsSummary(c *gin.Context) {
	if h.metrics == nil {
		c.Error(errors.NewServiceUnavailableError("metrics are not enabled"))
		return
	}
	c.JSON(http.StatusOK, h.metrics.Summary())
}
