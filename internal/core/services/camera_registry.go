package services

import (
	"fmt"
	"strings"

	"cctvdash/internal/core/domain"
	"cctvdash/pkg/utils"

	"go.uber.org/zap"
)

// CameraRegistry holds the known cameras in insertion order and drives the
// stream session on selection. Owned by the dashboard event loop.
type CameraRegistry struct {
	cameras map[domain.CameraID]*domain.Camera
	order   []domain.CameraID
	current domain.CameraID

	session *StreamSession
	logger  *zap.SugaredLogger
	newID   func() string
}

// NewCameraRegistry creates an empty registry bound to session.
func NewCameraRegistry(session *StreamSession, logger *zap.SugaredLogger) (*CameraRegistry, error) {
	if session == nil {
		return nil, fmt.Errorf("camera registry: %w: stream session", domain.ErrMissingCollaborator)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CameraRegistry{
		cameras: make(map[domain.CameraID]*domain.Camera),
		session: session,
		logger:  logger,
		newID:   utils.GenerateCameraID,
	}, nil
}

// Load replaces the registry content. The batch is validated before anything
// changes, so a rejected batch leaves the registry untouched.
func (r *CameraRegistry) Load(descriptors []domain.CameraDescriptor) error {
	seen := make(map[domain.CameraID]struct{}, len(descriptors))
	for _, d := range descriptors {
		id := normalizeCameraID(d.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("load cameras: %w: %s", domain.ErrDuplicateCamera, id)
		}
		seen[id] = struct{}{}
	}

	r.Clear()
	for _, d := range descriptors {
		r.insert(normalizeCameraID(d.ID), d)
	}
	r.logger.Infow("Cameras loaded", "count", len(r.order))
	return nil
}

// Add inserts one camera, filling defaults for absent fields.
func (r *CameraRegistry) Add(d domain.CameraDescriptor) (domain.CameraID, error) {
	id := normalizeCameraID(d.ID)
	if _, taken := r.cameras[id]; id != "" && taken {
		return "", fmt.Errorf("add camera: %w: %s", domain.ErrDuplicateCamera, id)
	}
	return r.insert(id, d), nil
}

// insert stores d under id, drawing a fresh id when id is empty. The caller
// has checked id for duplicates.
func (r *CameraRegistry) insert(id domain.CameraID, d domain.CameraDescriptor) domain.CameraID {
	if id == "" {
		for {
			id = domain.CameraID(r.newID())
			if _, taken := r.cameras[id]; !taken {
				break
			}
		}
	}

	name := utils.SanitizeString(d.Name)
	if name == "" {
		name = fmt.Sprintf("Camera %d", len(r.order)+1)
	}

	r.cameras[id] = &domain.Camera{
		ID:       id,
		Name:     name,
		Address:  strings.TrimSpace(d.Locator()),
		IsActive: d.IsActive,
		Status:   domain.ParseCameraStatus(d.Status),
	}
	r.order = append(r.order, id)
	return id
}

// Select makes id the active camera and starts its stream.
func (r *CameraRegistry) Select(id domain.CameraID) domain.SelectOutcome {
	cam, ok := r.cameras[id]
	if !ok {
		r.logger.Warnw("Select for unknown camera", "camera_id", id)
		return domain.SelectFailed
	}

	for _, other := range r.cameras {
		other.IsActive = false
	}
	cam.IsActive = true
	r.current = id

	outcome := r.session.RequestStart(id, cam.Address)
	r.logger.Infow("Camera selected", "camera_id", id, "name", cam.Name, "outcome", outcome)
	return outcome
}

// SelectByName selects the first camera whose name matches exactly. The
// boolean is false when no camera has that name.
func (r *CameraRegistry) SelectByName(name string) (domain.SelectOutcome, bool) {
	for _, id := range r.order {
		if r.cameras[id].Name == name {
			return r.Select(id), true
		}
	}
	return domain.SelectFailed, false
}

// UpdateStatus sets the status of id and reports whether the camera exists.
func (r *CameraRegistry) UpdateStatus(id domain.CameraID, status domain.CameraStatus) bool {
	cam, ok := r.cameras[id]
	if !ok {
		return false
	}
	cam.Status = status
	return true
}

// Clear stops any live stream and empties the registry.
func (r *CameraRegistry) Clear() {
	r.session.RequestStop()
	r.cameras = make(map[domain.CameraID]*domain.Camera)
	r.order = nil
	r.current = ""
}

// DefaultSelection returns the first camera flagged active, if any.
func (r *CameraRegistry) DefaultSelection() (domain.CameraID, bool) {
	for _, id := range r.order {
		if r.cameras[id].IsActive {
			return id, true
		}
	}
	return "", false
}

// Cameras returns copies of all cameras in insertion order.
func (r *CameraRegistry) Cameras() []domain.Camera {
	out := make([]domain.Camera, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.cameras[id])
	}
	return out
}

// Get returns a copy of the camera with the given id.
func (r *CameraRegistry) Get(id domain.CameraID) (domain.Camera, bool) {
	cam, ok := r.cameras[id]
	if !ok {
		return domain.Camera{}, false
	}
	return *cam, true
}

// Current returns the selected camera, if any.
func (r *CameraRegistry) Current() (domain.Camera, bool) {
	if r.current == "" {
		return domain.Camera{}, false
	}
	return r.Get(r.current)
}

// Len returns the number of registered cameras.
func (r *CameraRegistry) Len() int {
	return len(r.order)
}

func normalizeCameraID(id domain.CameraID) domain.CameraID {
	return domain.CameraID(strings.TrimSpace(string(id)))
}
