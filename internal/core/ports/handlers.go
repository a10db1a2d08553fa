package ports

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	GetSnapshot(c *gin.Context)
	ListCameras(c *gin.Context)
	AddCamera(c *gin.Context)
	SelectCamera(c *gin.Context)
	UpdateCameraStatus(c *gin.Context)
	StopStream(c *gin.Context)
	ListEmployees(c *gin.Context)
	GetEmployee(c *gin.Context)
	AddEmployee(c *gin.Context)
	RemoveEmployee(c *gin.Context)
	TrackEmployee(c *gin.Context)
	StartAI(c *gin.Context)
	StopAI(c *gin.Context)
	Refresh(c *gin.Context)
}

// ViewerHandler serves live snapshot subscriptions.
type ViewerHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	ConnectedViewers() int
}
