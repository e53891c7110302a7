package realtime

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-meet/backend/internal/models"
)

// Registry is the process-wide table of live rooms. Rooms exist implicitly
// once any session joins and are removed once the last session leaves; there
// is no persisted room object. All session mutation goes through the owning
// room's lock, so the single-spotlight and unique-active-session invariants
// are enforced inside one critical section.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	logger *zap.Logger
}

type room struct {
	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
	// finalized keeps the last closed record per participant so that a second
	// leave/remove is a no-op returning the already-recorded result.
	finalized map[string]Record
}

// NewRegistry creates an empty room registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		rooms:  make(map[string]*room),
		logger: logger,
	}
}

func (r *Registry) getOrCreate(roomID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{
			sessions:  make(map[string]*Session),
			finalized: make(map[string]Record),
		}
		r.rooms[roomID] = rm
	}
	return rm
}

func (r *Registry) get(roomID string) (*room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	return rm, ok
}

// Join creates the session for (roomID, participantID), lazily creating the
// room. If the same identity already holds an open session (a reconnect
// without a clean disconnect), the prior session is closed first and its
// record returned, so ghost sessions never accumulate.
func (r *Registry) Join(roomID, participantID string, role models.MeetingRole, now time.Time) (Snapshot, *Record) {
	for {
		rm := r.getOrCreate(roomID)
		rm.mu.Lock()
		if rm.closed {
			// Lost a race with room teardown; fetch a fresh room.
			rm.mu.Unlock()
			continue
		}
		var superseded *Record
		if prior, ok := rm.sessions[participantID]; ok {
			rec := prior.finalize(now, false)
			rm.finalized[participantID] = rec
			delete(rm.sessions, participantID)
			superseded = &rec
		}
		s := &Session{
			ParticipantID: participantID,
			RoomID:        roomID,
			Role:          role,
			JoinedAt:      now,
			LastActiveAt:  now,
			IsVideoOn:     true,
		}
		rm.sessions[participantID] = s
		snap := s.snapshot()
		rm.mu.Unlock()
		if superseded != nil {
			r.logger.Debug("superseded ghost session",
				zap.String("room_id", roomID), zap.String("participant_id", participantID))
		}
		return snap, superseded
	}
}

// Leave finalizes the session at now and removes it from the active set.
// finalizedNow reports whether this call closed the session; a repeat call
// returns the already-recorded result with finalizedNow=false, and found=false
// means the participant was never seen in the room.
func (r *Registry) Leave(roomID, participantID string, now time.Time, removed bool) (rec Record, finalizedNow, found bool) {
	rm, ok := r.get(roomID)
	if !ok {
		return Record{}, false, false
	}
	rm.mu.Lock()
	if s, ok := rm.sessions[participantID]; ok {
		rec = s.finalize(now, removed)
		rm.finalized[participantID] = rec
		delete(rm.sessions, participantID)
		finalizedNow, found = true, true
	} else if prev, ok := rm.finalized[participantID]; ok {
		rec, found = prev, true
	}
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()

	if empty {
		r.removeIfEmpty(roomID, rm)
	}
	return rec, finalizedNow, found
}

// removeIfEmpty deletes the room once its last session has left. The
// emptiness check is repeated under both locks so a concurrent join either
// lands before deletion or observes closed and retries.
func (r *Registry) removeIfEmpty(roomID string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.sessions) == 0 && r.rooms[roomID] == rm {
		rm.closed = true
		delete(r.rooms, roomID)
		r.logger.Debug("room removed", zap.String("room_id", roomID))
	}
}

// ListActive returns a consistent snapshot of the room's active sessions,
// ordered by join time for stable output. A session never appears after its
// own leave has been processed.
func (r *Registry) ListActive(roomID string) []Snapshot {
	rm, ok := r.get(roomID)
	if !ok {
		return nil
	}
	rm.mu.Lock()
	out := make([]Snapshot, 0, len(rm.sessions))
	for _, s := range rm.sessions {
		out = append(out, s.snapshot())
	}
	rm.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Get returns the active session snapshot for a participant.
func (r *Registry) Get(roomID, participantID string) (Snapshot, bool) {
	rm, ok := r.get(roomID)
	if !ok {
		return Snapshot{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	s, ok := rm.sessions[participantID]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// mutate applies fn to the participant's session under the room lock and
// updates LastActiveAt. Each control flag is independently last-writer-wins;
// two concurrent actions on different fields never lose an update because
// both run inside this critical section.
func (r *Registry) mutate(roomID, participantID string, now time.Time, fn func(*Session)) (Snapshot, bool) {
	rm, ok := r.get(roomID)
	if !ok {
		return Snapshot{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	s, ok := rm.sessions[participantID]
	if !ok {
		return Snapshot{}, false
	}
	fn(s)
	s.LastActiveAt = now
	return s.snapshot(), true
}

// SetMuted sets the mute flag on a participant's session.
func (r *Registry) SetMuted(roomID, participantID string, muted bool, now time.Time) (Snapshot, bool) {
	return r.mutate(roomID, participantID, now, func(s *Session) { s.IsMuted = muted })
}

// SetVideo sets the camera flag on a participant's session.
func (r *Registry) SetVideo(roomID, participantID string, on bool, now time.Time) (Snapshot, bool) {
	return r.mutate(roomID, participantID, now, func(s *Session) { s.IsVideoOn = on })
}

// SetHandRaised sets the hand-raise flag on a participant's session.
func (r *Registry) SetHandRaised(roomID, participantID string, raised bool, now time.Time) (Snapshot, bool) {
	return r.mutate(roomID, participantID, now, func(s *Session) { s.HandRaised = raised })
}

// SetSpotlight sets or clears the spotlight on a participant. Enabling first
// clears the flag on every other session in the same critical section, so at
// most one session per room is ever spotlighted at any observation point.
func (r *Registry) SetSpotlight(roomID, participantID string, on bool, now time.Time) (Snapshot, bool) {
	rm, ok := r.get(roomID)
	if !ok {
		return Snapshot{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	target, ok := rm.sessions[participantID]
	if !ok {
		return Snapshot{}, false
	}
	if on {
		for _, s := range rm.sessions {
			s.IsSpotlighted = false
		}
	}
	target.IsSpotlighted = on
	target.LastActiveAt = now
	return target.snapshot(), true
}

// ActiveCount returns the number of active sessions in a room.
func (r *Registry) ActiveCount(roomID string) int {
	rm, ok := r.get(roomID)
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.sessions)
}
