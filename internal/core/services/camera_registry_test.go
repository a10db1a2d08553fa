package services

import (
	"testing"

	"cctvdash/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*CameraRegistry, *StreamSession) {
	t.Helper()
	session := NewStreamSession(nil, nil)
	registry, err := NewCameraRegistry(session, nil)
	require.NoError(t, err)
	return registry, session
}

func TestNewCameraRegistry_RequiresSession(t *testing.T) {
	_, err := NewCameraRegistry(nil, nil)
	assert.ErrorIs(t, err, domain.ErrMissingCollaborator)
}

func TestCameraRegistry_LoadAppliesDefaults(t *testing.T) {
	registry, _ := newTestRegistry(t)

	err := registry.Load([]domain.CameraDescriptor{
		{ID: "cam1", Name: "Lobby", Address: "rtsp://a1", Status: "online"},
		{Address: "rtsp://a2"},
		{ID: "cam3", Name: "Legacy", RTSPURL: "rtsp://a3"},
	})
	require.NoError(t, err)

	cams := registry.Cameras()
	require.Len(t, cams, 3)
	assert.Equal(t, domain.Camera{ID: "cam1", Name: "Lobby", Address: "rtsp://a1", Status: domain.CameraOnline}, cams[0])

	assert.NotEmpty(t, cams[1].ID)
	assert.Equal(t, "Camera 2", cams[1].Name)
	assert.Equal(t, domain.CameraOffline, cams[1].Status)
	assert.False(t, cams[1].IsActive)

	assert.Equal(t, "rtsp://a3", cams[2].Address)
}

func TestCameraRegistry_LoadRejectsDuplicateBatch(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{{ID: "keep", Name: "Keep"}}))

	err := registry.Load([]domain.CameraDescriptor{
		{ID: "x", Name: "One"},
		{ID: "x", Name: "Two"},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCamera)

	cams := registry.Cameras()
	require.Len(t, cams, 1)
	assert.Equal(t, domain.CameraID("keep"), cams[0].ID)
}

func TestCameraRegistry_LoadRejectsWhitespaceVariantIDs(t *testing.T) {
	registry, session := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{{ID: "old", Name: "Old", Address: "rtsp://old"}}))
	registry.Select("old")
	session.DrainCommands()

	err := registry.Load([]domain.CameraDescriptor{
		{ID: "c1", Name: "One"},
		{ID: " c1", Name: "Padded"},
		{ID: "c3", Name: "Three"},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCamera)

	cams := registry.Cameras()
	require.Len(t, cams, 1)
	assert.Equal(t, domain.CameraID("old"), cams[0].ID)
	assert.Empty(t, session.DrainCommands())
	assert.Equal(t, domain.CameraID("old"), session.BoundCamera())
}

func TestCameraRegistry_LoadTrimsIDs(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{{ID: "  cam1 ", Name: "Lobby"}}))

	cam, ok := registry.Get("cam1")
	require.True(t, ok)
	assert.Equal(t, "Lobby", cam.Name)

	_, err := registry.Add(domain.CameraDescriptor{ID: "cam1 "})
	assert.ErrorIs(t, err, domain.ErrDuplicateCamera)
}

func TestCameraRegistry_AddDuplicateID(t *testing.T) {
	registry, _ := newTestRegistry(t)
	_, err := registry.Add(domain.CameraDescriptor{ID: "cam1"})
	require.NoError(t, err)

	_, err = registry.Add(domain.CameraDescriptor{ID: "cam1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateCamera)
	assert.Equal(t, 1, registry.Len())
}

func TestCameraRegistry_AddRedrawsGeneratedCollision(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ids := []string{"cam_fixed", "cam_fixed", "cam_other"}
	registry.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := registry.Add(domain.CameraDescriptor{})
	require.NoError(t, err)
	second, err := registry.Add(domain.CameraDescriptor{})
	require.NoError(t, err)

	assert.Equal(t, domain.CameraID("cam_fixed"), first)
	assert.Equal(t, domain.CameraID("cam_other"), second)
}

func TestCameraRegistry_SelectSwitchesCameras(t *testing.T) {
	registry, session := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{
		{ID: "cam1", Name: "Lobby", Address: "rtsp://a1"},
		{ID: "cam2", Name: "Parking", Address: "rtsp://a2"},
	}))

	assert.Equal(t, domain.SelectStarted, registry.Select("cam1"))
	assert.Equal(t, domain.SelectStarted, registry.Select("cam2"))

	assert.Equal(t, []domain.StreamCommand{
		{Type: domain.CommandStartStream, CameraID: "cam1", Address: "rtsp://a1"},
		{Type: domain.CommandStopStream, CameraID: "cam1", Address: "rtsp://a1"},
		{Type: domain.CommandStartStream, CameraID: "cam2", Address: "rtsp://a2"},
	}, session.DrainCommands())

	current, ok := registry.Current()
	require.True(t, ok)
	assert.Equal(t, domain.CameraID("cam2"), current.ID)

	active := 0
	for _, c := range registry.Cameras() {
		if c.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestCameraRegistry_SelectUnknown(t *testing.T) {
	registry, session := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{{ID: "cam1", Address: "rtsp://a1"}}))

	assert.Equal(t, domain.SelectFailed, registry.Select("nope"))
	assert.Empty(t, session.DrainCommands())
	_, ok := registry.Current()
	assert.False(t, ok)
}

func TestCameraRegistry_SelectWithoutAddress(t *testing.T) {
	registry, session := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{{ID: "cam1", Name: "Dead"}}))

	assert.Equal(t, domain.SelectFailed, registry.Select("cam1"))
	assert.Equal(t, domain.StateError, session.State())
	assert.Empty(t, session.DrainCommands())
}

func TestCameraRegistry_SelectByName(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{
		{ID: "cam1", Name: "Lobby", Address: "rtsp://a1"},
	}))

	outcome, found := registry.SelectByName("Lobby")
	assert.True(t, found)
	assert.Equal(t, domain.SelectStarted, outcome)

	outcome, found = registry.SelectByName("Roof")
	assert.False(t, found)
	assert.Equal(t, domain.SelectFailed, outcome)
}

func TestCameraRegistry_DefaultSelection(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{
		{ID: "cam1"},
		{ID: "cam2", IsActive: true},
		{ID: "cam3", IsActive: true},
	}))

	id, ok := registry.DefaultSelection()
	assert.True(t, ok)
	assert.Equal(t, domain.CameraID("cam2"), id)
}

func TestCameraRegistry_LoadStopsLiveStream(t *testing.T) {
	registry, session := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{{ID: "cam1", Address: "rtsp://a1"}}))
	registry.Select("cam1")
	session.DrainCommands()

	require.NoError(t, registry.Load([]domain.CameraDescriptor{{ID: "cam9", Address: "rtsp://a9"}}))
	assert.Equal(t, []domain.StreamCommand{
		{Type: domain.CommandStopStream, CameraID: "cam1", Address: "rtsp://a1"},
	}, session.DrainCommands())
	assert.Equal(t, domain.StateIdle, session.State())
}

func TestCameraRegistry_UpdateStatusAndClear(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.Load([]domain.CameraDescriptor{{ID: "cam1"}}))

	assert.True(t, registry.UpdateStatus("cam1", domain.CameraError))
	cam, _ := registry.Get("cam1")
	assert.Equal(t, domain.CameraError, cam.Status)
	assert.False(t, registry.UpdateStatus("ghost", domain.CameraOnline))

	registry.Clear()
	assert.Equal(t, 0, registry.Len())
}
