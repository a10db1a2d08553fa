package demo

import (
	"time"

	"cctvdash/internal/core/domain"
)

// UnavailableAddress makes the simulated pipeline answer with a sentinel
// instead of frames.
const UnavailableAddress = "rtsp://demo.local/unavailable"

type seedEmployee struct {
	id       domain.EmployeeID
	name     string
	status   domain.PresenceStatus
	seenAgo  time.Duration
	location string
}

func seedCameras() []domain.CameraDescriptor {
	return []domain.CameraDescriptor{
		{ID: "main_entrance", Name: "Main Entrance", RTSPURL: "rtsp://demo.local/main-entrance", IsActive: true, Status: "online"},
		{ID: "lobby", Name: "Lobby", RTSPURL: "rtsp://demo.local/lobby", Status: "online"},
		{ID: "parking_lot", Name: "Parking Lot", RTSPURL: "rtsp://demo.local/parking-lot", Status: "online"},
		{ID: "warehouse", Name: "Warehouse", RTSPURL: UnavailableAddress, Status: "error"},
		{ID: "server_room", Name: "Server Room", RTSPURL: "rtsp://demo.local/server-room", Status: "offline"},
	}
}

func seedEmployees() []seedEmployee {
	return []seedEmployee{
		{id: "john_smith", name: "John Smith", status: domain.PresencePresent, location: "Main Entrance"},
		{id: "sarah_johnson", name: "Sarah Johnson", status: domain.PresencePresent, location: "Lobby"},
		{id: "mike_wilson", name: "Mike Wilson", status: domain.PresenceAbsent, seenAgo: 5 * time.Minute, location: "Parking Lot"},
		{id: "emily_davis", name: "Emily Davis", status: domain.PresenceAbsent, seenAgo: 45 * time.Minute, location: "Lobby"},
		{id: "david_brown", name: "David Brown", status: domain.PresenceAbsent, seenAgo: time.Hour, location: "Warehouse"},
		{id: "lisa_anderson", name: "Lisa Anderson", status: domain.PresenceAbsent, seenAgo: 2 * time.Hour, location: "Unknown"},
	}
}
