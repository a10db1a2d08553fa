package services

import (
	"fmt"
	"strings"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
	"cctvdash/pkg/utils"

	"go.uber.org/zap"
)

// PresenceStore is the authoritative employee list. Owned by the dashboard
// event loop; updates are applied one at a time in receipt order.
type PresenceStore struct {
	employees map[domain.EmployeeID]*domain.Employee
	order     []domain.EmployeeID
	stats     domain.PresenceStats

	pending map[domain.EmployeeID]struct{}
	lookups []domain.EmployeeID

	cameras ports.CameraSelector
	metrics ports.DashboardMetrics
	logger  *zap.SugaredLogger
	newID   func() string
}

// NewPresenceStore creates a store. A nil selector disables following a
// tracked employee onto a camera.
func NewPresenceStore(cameras ports.CameraSelector, metrics ports.DashboardMetrics, logger *zap.SugaredLogger) *PresenceStore {
	if metrics == nil {
		metrics = NewMetricsService(nil)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PresenceStore{
		employees: make(map[domain.EmployeeID]*domain.Employee),
		pending:   make(map[domain.EmployeeID]struct{}),
		cameras:   cameras,
		metrics:   metrics,
		logger:    logger,
		newID:     utils.GenerateEmployeeID,
	}
}

// Load atomically replaces the employee list.
func (s *PresenceStore) Load(descriptors []domain.EmployeeDescriptor) error {
	seen := make(map[domain.EmployeeID]struct{}, len(descriptors))
	for _, d := range descriptors {
		id := normalizeEmployeeID(d.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("load employees: %w: %s", domain.ErrDuplicateEmployee, id)
		}
		seen[id] = struct{}{}
	}

	s.employees = make(map[domain.EmployeeID]*domain.Employee, len(descriptors))
	s.order = nil
	s.pending = make(map[domain.EmployeeID]struct{})
	s.lookups = nil
	for _, d := range descriptors {
		s.insert(d)
	}
	s.recompute()
	s.logger.Infow("Employees loaded", "count", len(s.order), "present", s.stats.Present)
	return nil
}

// Add inserts one employee. An empty id is replaced by a generated one.
func (s *PresenceStore) Add(d domain.EmployeeDescriptor) (domain.EmployeeID, error) {
	d.ID = normalizeEmployeeID(d.ID)
	if d.ID != "" {
		if _, taken := s.employees[d.ID]; taken {
			return "", fmt.Errorf("add employee: %w: %s", domain.ErrDuplicateEmployee, d.ID)
		}
	}
	id := s.insert(d)
	s.recompute()
	return id, nil
}

func (s *PresenceStore) insert(d domain.EmployeeDescriptor) domain.EmployeeID {
	id := normalizeEmployeeID(d.ID)
	if id == "" {
		for {
			id = domain.EmployeeID(s.newID())
			if _, taken := s.employees[id]; !taken {
				break
			}
		}
	}

	name := utils.SanitizeString(d.Name)
	if name == "" {
		name = fmt.Sprintf("Employee %d", len(s.order)+1)
	}
	lastSeen := d.LastSeen
	if lastSeen == "" {
		lastSeen = domain.DefaultLastSeen
	}
	location := d.Location
	if location == "" {
		location = domain.UnknownLocation
	}

	s.employees[id] = &domain.Employee{
		ID:       id,
		Name:     name,
		Status:   domain.ParsePresenceStatus(d.Status),
		LastSeen: lastSeen,
		Location: location,
	}
	s.order = append(s.order, id)
	return id
}

// Apply merges one update. Each of Status, LastSeen and Location replaces the
// stored value only when given.
func (s *PresenceStore) Apply(u domain.PresenceUpdate) domain.ApplyOutcome {
	emp, ok := s.employees[u.EmployeeID]
	if !ok {
		s.logger.Debugw("Presence update for unknown employee", "employee_id", u.EmployeeID)
		s.metrics.RecordPresenceUpdate(domain.ApplyMissed)
		return domain.ApplyMissed
	}

	if u.Status != "" {
		emp.Status = domain.ParsePresenceStatus(u.Status)
	}
	if u.LastSeen != "" {
		emp.LastSeen = u.LastSeen
	}
	if u.Location != "" {
		emp.Location = u.Location
	}
	s.recompute()
	s.metrics.RecordPresenceUpdate(domain.ApplyApplied)
	return domain.ApplyApplied
}

// Remove deletes id and any lookup pending for it.
func (s *PresenceStore) Remove(id domain.EmployeeID) domain.RemoveOutcome {
	if _, ok := s.employees[id]; !ok {
		return domain.RemoveMissed
	}
	delete(s.employees, id)
	delete(s.pending, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.recompute()
	return domain.RemoveRemoved
}

// Stats returns the counters as of the last change.
func (s *PresenceStore) Stats() domain.PresenceStats {
	return s.stats
}

// Track queues a location lookup for id. A lookup already in flight for the
// same employee is not repeated.
func (s *PresenceStore) Track(id domain.EmployeeID) domain.TrackOutcome {
	if _, ok := s.employees[id]; !ok {
		s.metrics.RecordTrack("missed")
		return domain.TrackMissed
	}
	if _, inFlight := s.pending[id]; !inFlight {
		s.pending[id] = struct{}{}
		s.lookups = append(s.lookups, id)
	}
	s.metrics.RecordTrack("pending")
	return domain.TrackPending
}

// DrainLookups returns employees whose location must be fetched.
func (s *PresenceStore) DrainLookups() []domain.EmployeeID {
	if len(s.lookups) == 0 {
		return nil
	}
	ids := s.lookups
	s.lookups = nil
	return ids
}

// ResolveTrack applies a finished location lookup. On success the location
// is stored verbatim and, if a camera carries that name, it is selected.
func (s *PresenceStore) ResolveTrack(res domain.LocationResult) domain.TrackResolution {
	delete(s.pending, res.EmployeeID)

	if res.Err != nil {
		s.logger.Warnw("Location lookup failed", "employee_id", res.EmployeeID, "error", res.Err)
		s.metrics.RecordTrack("failed")
		return domain.TrackResolution{}
	}
	emp, ok := s.employees[res.EmployeeID]
	location := strings.TrimSpace(res.Location)
	if !ok || location == "" {
		s.metrics.RecordTrack("failed")
		return domain.TrackResolution{}
	}

	emp.Location = location
	resolution := domain.TrackResolution{Updated: true, Location: location}
	if s.cameras != nil {
		outcome, found := s.cameras.SelectByName(location)
		resolution.CameraSelected = found
		resolution.Select = outcome
	}
	s.logger.Infow("Employee located", "employee_id", emp.ID, "location", location, "camera_selected", resolution.CameraSelected)
	s.metrics.RecordTrack("resolved")
	return resolution
}

// Get returns a copy of the employee with the given id.
func (s *PresenceStore) Get(id domain.EmployeeID) (domain.Employee, bool) {
	emp, ok := s.employees[id]
	if !ok {
		return domain.Employee{}, false
	}
	return *emp, true
}

// Employees returns copies of all employees in load order.
func (s *PresenceStore) Employees() []domain.Employee {
	out := make([]domain.Employee, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.employees[id])
	}
	return out
}

// ByStatus returns the employees with the given status, in load order.
func (s *PresenceStore) ByStatus(status domain.PresenceStatus) []domain.Employee {
	var out []domain.Employee
	for _, id := range s.order {
		if emp := s.employees[id]; emp.Status == status {
			out = append(out, *emp)
		}
	}
	return out
}

// Search matches query case-insensitively against name and location.
func (s *PresenceStore) Search(query string) []domain.Employee {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.Employees()
	}
	var out []domain.Employee
	for _, id := range s.order {
		emp := s.employees[id]
		if utils.ContainsFold(emp.Name, query) || utils.ContainsFold(emp.Location, query) {
			out = append(out, *emp)
		}
	}
	return out
}

func (s *PresenceStore) recompute() {
	stats := domain.PresenceStats{Total: len(s.order)}
	for _, id := range s.order {
		if s.employees[id].Status == domain.PresencePresent {
			stats.Present++
		} else {
			stats.Absent++
		}
	}
	s.stats = stats
	s.metrics.RecordPresence(stats)
}

func normalizeEmployeeID(id domain.EmployeeID) domain.EmployeeID {
	return domain.EmployeeID(strings.TrimSpace(string(id)))
}
