package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-meet/backend/internal/models"
)

func TestRegistryJoinAndListActive(t *testing.T) {
	r := NewRegistry(nil)
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	r.Join("room-1", "alice", models.MeetingRoleHost, base)
	r.Join("room-1", "bob", models.MeetingRoleParticipant, base.Add(5*time.Second))
	r.Join("room-1", "carol", models.MeetingRoleParticipant, base.Add(2*time.Second))

	list := r.ListActive("room-1")
	require.Len(t, list, 3)
	assert.Equal(t, "alice", list[0].ParticipantID)
	assert.Equal(t, "carol", list[1].ParticipantID)
	assert.Equal(t, "bob", list[2].ParticipantID)
	assert.True(t, list[0].IsVideoOn, "camera defaults to on")
	assert.False(t, list[0].IsMuted)
}

func TestRegistryRejoinSupersedesGhost(t *testing.T) {
	r := NewRegistry(nil)
	base := time.Now()

	r.Join("room-1", "alice", models.MeetingRoleParticipant, base)
	snap, superseded := r.Join("room-1", "alice", models.MeetingRoleParticipant, base.Add(30*time.Second))

	require.NotNil(t, superseded, "reconnect must close the ghost session")
	assert.Equal(t, int64(30), superseded.DurationSeconds)
	assert.Equal(t, 1, r.ActiveCount("room-1"))
	assert.Equal(t, base.Add(30*time.Second), snap.JoinedAt)
}

func TestRegistryLeaveComputesDuration(t *testing.T) {
	r := NewRegistry(nil)
	base := time.Now()

	r.Join("room-1", "alice", models.MeetingRoleParticipant, base)
	rec, finalizedNow, found := r.Leave("room-1", "alice", base.Add(125*time.Second), false)

	require.True(t, found)
	assert.True(t, finalizedNow)
	assert.Equal(t, int64(125), rec.DurationSeconds)
	assert.Equal(t, base, rec.JoinedAt)
	assert.Equal(t, base.Add(125*time.Second), rec.LeftAt)
	assert.Equal(t, 0, r.ActiveCount("room-1"))
}

func TestRegistryLeaveIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	base := time.Now()

	r.Join("room-1", "alice", models.MeetingRoleHost, base)
	r.Join("room-1", "bob", models.MeetingRoleParticipant, base)

	first, finalizedNow, found := r.Leave("room-1", "bob", base.Add(time.Minute), false)
	require.True(t, found)
	require.True(t, finalizedNow)

	second, finalizedNow, found := r.Leave("room-1", "bob", base.Add(2*time.Minute), false)
	require.True(t, found)
	assert.False(t, finalizedNow, "second leave must not re-finalize")
	assert.Equal(t, first, second, "second leave returns the recorded result")
}

func TestRegistryLeaveUnknownParticipant(t *testing.T) {
	r := NewRegistry(nil)
	_, _, found := r.Leave("room-1", "ghost", time.Now(), false)
	assert.False(t, found)
}

func TestRegistryDurationClampedNonNegative(t *testing.T) {
	r := NewRegistry(nil)
	base := time.Now()

	r.Join("room-1", "alice", models.MeetingRoleParticipant, base)
	rec, _, found := r.Leave("room-1", "alice", base.Add(-10*time.Second), false)

	require.True(t, found)
	assert.Equal(t, int64(0), rec.DurationSeconds)
}

func TestRegistrySingleSpotlight(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()
	r.Join("room-1", "alice", models.MeetingRoleHost, now)
	r.Join("room-1", "bob", models.MeetingRoleParticipant, now)
	r.Join("room-1", "carol", models.MeetingRoleParticipant, now)

	_, ok := r.SetSpotlight("room-1", "bob", true, now)
	require.True(t, ok)
	snap, ok := r.SetSpotlight("room-1", "carol", true, now)
	require.True(t, ok)
	assert.True(t, snap.IsSpotlighted)

	spotlighted := 0
	for _, s := range r.ListActive("room-1") {
		if s.IsSpotlighted {
			spotlighted++
			assert.Equal(t, "carol", s.ParticipantID)
		}
	}
	assert.Equal(t, 1, spotlighted, "at most one spotlighted session per room")

	// Clearing leaves nobody spotlighted.
	_, ok = r.SetSpotlight("room-1", "carol", false, now)
	require.True(t, ok)
	for _, s := range r.ListActive("room-1") {
		assert.False(t, s.IsSpotlighted)
	}
}

func TestRegistryControlFlags(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()
	r.Join("room-1", "alice", models.MeetingRoleParticipant, now)

	snap, ok := r.SetMuted("room-1", "alice", true, now.Add(time.Second))
	require.True(t, ok)
	assert.True(t, snap.IsMuted)
	assert.Equal(t, now.Add(time.Second), snap.LastActiveAt)

	snap, ok = r.SetVideo("room-1", "alice", false, now)
	require.True(t, ok)
	assert.False(t, snap.IsVideoOn)
	assert.True(t, snap.IsMuted, "flags are independent")

	snap, ok = r.SetHandRaised("room-1", "alice", true, now)
	require.True(t, ok)
	assert.True(t, snap.HandRaised)

	_, ok = r.SetMuted("room-1", "nobody", true, now)
	assert.False(t, ok)
}

func TestRegistryRoomRemovedWhenEmpty(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()

	r.Join("room-1", "alice", models.MeetingRoleParticipant, now)
	r.Leave("room-1", "alice", now.Add(time.Second), false)

	assert.Equal(t, 0, r.ActiveCount("room-1"))
	assert.Nil(t, r.ListActive("room-1"))

	// A fresh join after teardown lands in a brand-new room with no stale
	// finalized records blocking it.
	snap, superseded := r.Join("room-1", "alice", models.MeetingRoleParticipant, now.Add(time.Minute))
	assert.Nil(t, superseded)
	assert.Equal(t, 1, r.ActiveCount("room-1"))
	assert.Equal(t, now.Add(time.Minute), snap.JoinedAt)
}

func TestRegistryConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func(id string) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				r.Join("room-1", id, models.MeetingRoleParticipant, now)
				r.SetMuted("room-1", id, j%2 == 0, now)
				r.Leave("room-1", id, now.Add(time.Second), false)
			}
		}(string(rune('a' + i)))
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 0, r.ActiveCount("room-1"))
}
