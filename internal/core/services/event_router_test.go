package services

import (
	"testing"

	"cctvdash/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unknownEvent struct{}

func (unknownEvent) Kind() domain.EventKind { return "mystery" }

func newTestRouter(t *testing.T) (*EventRouter, *StreamSession, *PresenceStore) {
	t.Helper()
	session := NewStreamSession(nil, nil)
	store := NewPresenceStore(nil, nil, nil)
	require.NoError(t, store.Load(sampleEmployees()))
	return NewEventRouter(session, store, nil, nil), session, store
}

func TestEventRouter_PresenceBatchContinuesPastMisses(t *testing.T) {
	router, _, store := newTestRouter(t)

	report := router.Dispatch(domain.PresenceBatchEvent{
		Source: "push",
		Updates: []domain.PresenceUpdate{
			{EmployeeID: "e1", Status: "absent"},
			{EmployeeID: "ghost", Status: "present"},
			{EmployeeID: "e3", Status: "present", LastSeen: "Just now"},
		},
	})

	assert.Equal(t, domain.EventPresenceBatch, report.Kind)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 1, report.Missed)
	assert.Equal(t, domain.PresenceStats{Present: 2, Absent: 1, Total: 3}, store.Stats())
}

func TestEventRouter_FramesAndAIStatus(t *testing.T) {
	router, session, _ := newTestRouter(t)
	session.RequestStart("cam1", "rtsp://a1")

	report := router.Dispatch(dataFrame("rtsp://a1"))
	assert.Equal(t, domain.FrameDisplayed, report.Frame)

	report = router.Dispatch(dataFrame("rtsp://other"))
	assert.Equal(t, domain.FrameStale, report.Frame)

	router.Dispatch(domain.AIStatusEvent{Active: true})
	assert.True(t, session.View().AIActive)
}

func TestEventRouter_LocationResult(t *testing.T) {
	router, _, store := newTestRouter(t)
	store.Track("e1")

	report := router.Dispatch(domain.LocationResultEvent{Result: domain.LocationResult{EmployeeID: "e1", Location: "Gate"}})
	assert.True(t, report.Track.Updated)
	e1, _ := store.Get("e1")
	assert.Equal(t, "Gate", e1.Location)
}

func TestEventRouter_Connectivity(t *testing.T) {
	router, _, _ := newTestRouter(t)
	require.True(t, router.Connectivity().Online)

	report := router.Dispatch(domain.ConnectivityEvent{Online: false, Source: "poll", Reason: "connection refused"})
	assert.False(t, report.Restored)
	assert.False(t, router.Connectivity().Online)
	assert.Equal(t, "connection refused", router.Connectivity().Reason)

	report = router.Dispatch(domain.ConnectivityEvent{Online: false, Source: "push", Reason: "eof"})
	assert.False(t, report.Restored)
	assert.Equal(t, "push", router.Connectivity().Source)

	report = router.Dispatch(domain.ConnectivityEvent{Online: true, Source: "poll"})
	assert.True(t, report.Restored)
	assert.True(t, router.Connectivity().Online)

	report = router.Dispatch(domain.ConnectivityEvent{Online: true, Source: "push"})
	assert.False(t, report.Restored)
}

func TestEventRouter_PushOnlineReissuesUndeliveredStart(t *testing.T) {
	router, session, _ := newTestRouter(t)
	session.RequestStart("cam1", "rtsp://a1")
	require.True(t, session.MarkStartUndelivered(session.StartGeneration()))
	session.DrainCommands()

	report := router.Dispatch(domain.ConnectivityEvent{Online: true, Source: "poll"})
	assert.False(t, report.Resent)
	assert.Empty(t, session.DrainCommands())

	report = router.Dispatch(domain.ConnectivityEvent{Online: true, Source: "push"})
	assert.True(t, report.Resent)
	assert.Len(t, session.DrainCommands(), 1)
}

func TestEventRouter_Unhandled(t *testing.T) {
	router, _, _ := newTestRouter(t)
	assert.True(t, router.Dispatch(unknownEvent{}).Unhandled)
	assert.True(t, router.Dispatch(nil).Unhandled)
}
