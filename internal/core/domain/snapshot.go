package domain

import "time"

type Connectivity struct {
	Online bool      `json:"online"`
	Source string    `json:"source,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Since  time.Time `json:"since"`
}

// Snapshot is the complete, immutable dashboard state handed to projections.
type Snapshot struct {
	Version       uint64        `json:"version"`
	GeneratedAt   time.Time     `json:"generatedAt"`
	Clock         string        `json:"clock"`
	Date          string        `json:"date"`
	Initialized   bool          `json:"initialized"`
	Cameras       []Camera      `json:"cameras"`
	CurrentCamera *Camera       `json:"currentCamera,omitempty"`
	Session       SessionView   `json:"session"`
	Streaming     bool          `json:"streaming"`
	Employees     []Employee    `json:"employees"`
	Stats         PresenceStats `json:"stats"`
	Connectivity  Connectivity  `json:"connectivity"`
}
