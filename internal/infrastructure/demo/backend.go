package demo

import (
	"net/http"
	"sync"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type employeeState struct {
	seedEmployee
	lastSeen time.Time
}

// Backend is an in-memory stand-in for the camera/presence backend. It
// serves the REST API the dashboard polls and simulates people moving
// between cameras on every Tick.
type Backend struct {
	mu        sync.RWMutex
	cameras   []domain.CameraDescriptor
	employees []*employeeState
	aiActive  bool
	tick      int

	now      func() time.Time
	pipeline *Pipeline
	logger   *zap.SugaredLogger
}

// NewBackend creates a backend seeded with the demo cameras and employees.
func NewBackend(logger *zap.SugaredLogger) *Backend {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	b := &Backend{
		cameras: seedCameras(),
		now:     utils.Now,
		logger:  logger,
	}
	start := b.now()
	for _, e := range seedEmployees() {
		b.employees = append(b.employees, &employeeState{seedEmployee: e, lastSeen: start.Add(-e.seenAgo)})
	}
	b.pipeline = NewPipeline(b, logger.Named("pipeline"))
	return b
}

// Pipeline returns the simulated capture pipeline served on /camera.
func (b *Backend) Pipeline() *Pipeline {
	return b.pipeline
}

// Router exposes the backend REST API and the pipeline websocket.
func (b *Backend) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/cameras", b.listCameras)
		api.GET("/employees", b.listEmployees)
		api.GET("/employees/status", b.employeeStatus)
		api.GET("/employee/:id/location", b.employeeLocation)
		api.POST("/ai/start", b.setAI(true))
		api.POST("/ai/stop", b.setAI(false))
		api.GET("/ai/status", b.aiStatus)
	}
	router.GET("/camera", gin.WrapF(b.pipeline.HandleWebSocket))
	return router
}

// Tick advances the simulation: one employee changes presence and, when
// arriving, shows up at the next camera.
func (b *Backend) Tick() []domain.PresenceUpdate {
	b.mu.Lock()
	now := b.now()
	e := b.employees[b.tick%len(b.employees)]
	b.tick++

	if e.status == domain.PresencePresent {
		e.status = domain.PresenceAbsent
	} else {
		e.status = domain.PresencePresent
		e.location = b.cameras[b.tick%len(b.cameras)].Name
	}
	e.lastSeen = now
	updates := b.statusLocked(now)
	b.mu.Unlock()

	b.logger.Debugw("Simulated presence change", "employee", e.name, "status", e.status, "location", e.location)
	return updates
}

// Run ticks the simulation and pushes status updates to pipeline clients
// until stop is closed.
func (b *Backend) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.pipeline.BroadcastStatus(b.Tick())
		}
	}
}

func (b *Backend) AIActive() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.aiActive
}

func (b *Backend) listCameras(c *gin.Context) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c.JSON(http.StatusOK, b.cameras)
}

func (b *Backend) listEmployees(c *gin.Context) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := b.now()
	out := make([]domain.EmployeeDescriptor, 0, len(b.employees))
	for _, e := range b.employees {
		out = append(out, domain.EmployeeDescriptor{
			ID:       e.id,
			Name:     e.name,
			Status:   string(e.status),
			LastSeen: utils.FormatLastSeen(e.lastSeen, now),
			Location: e.location,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) employeeStatus(c *gin.Context) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c.JSON(http.StatusOK, b.statusLocked(b.now()))
}

func (b *Backend) statusLocked(now time.Time) []domain.PresenceUpdate {
	updates := make([]domain.PresenceUpdate, 0, len(b.employees))
	for _, e := range b.employees {
		updates = append(updates, domain.PresenceUpdate{
			EmployeeID: e.id,
			Status:     string(e.status),
			LastSeen:   utils.FormatLastSeen(e.lastSeen, now),
			Location:   e.location,
		})
	}
	return updates
}

func (b *Backend) employeeLocation(c *gin.Context) {
	id := domain.EmployeeID(c.Param("id"))

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.employees {
		if e.id == id {
			c.JSON(http.StatusOK, gin.H{
				"employeeId":   e.id,
				"employeeName": e.name,
				"location":     e.location,
			})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
}

func (b *Backend) setAI(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		b.aiActive = active
		b.mu.Unlock()

		message := "AI processing stopped"
		if active {
			message = "AI processing started"
		}
		b.pipeline.BroadcastAIStatus(active)
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": message})
	}
}

func (b *Backend) aiStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":         b.AIActive(),
		"active_streams": b.pipeline.ActiveStreams(),
	})
}
