package ports

import (
	"context"

	"cctvdash/internal/core/domain"
)

// DashboardService is the operator command surface. Every method is
// serialized through the dashboard event loop.
type DashboardService interface {
	Snapshot() domain.Snapshot

	AddCamera(ctx context.Context, desc domain.CameraDescriptor) (domain.CameraID, error)
	SelectCamera(ctx context.Context, id domain.CameraID) (domain.SelectOutcome, error)
	UpdateCameraStatus(ctx context.Context, id domain.CameraID, status domain.CameraStatus) error
	StopStream(ctx context.Context) error

	Employee(ctx context.Context, id domain.EmployeeID) (domain.Employee, error)
	SearchEmployees(ctx context.Context, query string, status domain.PresenceStatus) ([]domain.Employee, error)
	AddEmployee(ctx context.Context, desc domain.EmployeeDescriptor) (domain.EmployeeID, error)
	RemoveEmployee(ctx context.Context, id domain.EmployeeID) error
	TrackEmployee(ctx context.Context, id domain.EmployeeID) (domain.TrackOutcome, error)

	StartAI(ctx context.Context) error
	StopAI(ctx context.Context) error
	Refresh(ctx context.Context) error
}
