package domain

import "errors"

var (
	ErrCameraNotFound      = errors.New("camera not found")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrDuplicateCamera     = errors.New("duplicate camera id")
	ErrDuplicateEmployee   = errors.New("duplicate employee id")
	ErrDashboardStopped    = errors.New("dashboard stopped")
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrPushNotConnected    = errors.New("push channel not connected")
	ErrLookupRateLimited   = errors.New("location lookup rate limited")
	ErrMissingCollaborator = errors.New("required collaborator missing")
)
