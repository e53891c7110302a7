package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	RoomID   string
	SenderID string
	TargetID string
	Event    string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) PublishRoomEvent(roomID, senderID, targetID, event string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{RoomID: roomID, SenderID: senderID, TargetID: targetID, Event: event})
	return nil
}

func (f *fakePublisher) all() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func newHubClient(roomID, participantID string, buf int) *Client {
	return &Client{
		ParticipantID: participantID,
		RoomID:        roomID,
		send:          make(chan WSMessage, buf),
	}
}

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHubRelayToRoomExcludesSender(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHub(nil, pub, nil)

	alice := newHubClient("room-1", "alice", 4)
	bob := newHubClient("room-1", "bob", 4)
	carol := newHubClient("room-1", "carol", 4)
	for _, c := range []*Client{alice, bob, carol} {
		h.Register(c)
	}

	h.RelayToRoom("room-1", "carol", EventParticipantMuted, MuteChangedPayload{ParticipantID: "carol", Muted: true})

	assert.Empty(t, drain(carol), "the excluded sender never sees its own echo")
	require.Len(t, drain(alice), 1)
	require.Len(t, drain(bob), 1)

	published := pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, "carol", published[0].SenderID, "cross-instance delivery carries the same exclusion")
	assert.Equal(t, "", published[0].TargetID)
}

func TestHubRelayToParticipantIsPointToPoint(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHub(nil, pub, nil)

	alice := newHubClient("room-1", "alice", 4)
	bob := newHubClient("room-1", "bob", 4)
	h.Register(alice)
	h.Register(bob)

	h.RelayToParticipant("room-1", "bob", EventYouWereRemoved, YouWereRemovedPayload{RoomID: "room-1"})

	assert.Empty(t, drain(alice))
	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, EventYouWereRemoved, msgs[0].Event)

	var payload YouWereRemovedPayload
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Equal(t, "room-1", payload.RoomID)

	published := pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, "bob", published[0].TargetID)
}

func TestHubDropsWhenRecipientBufferFull(t *testing.T) {
	h := NewHub(nil, nil, nil)

	slow := newHubClient("room-1", "slow", 1)
	h.Register(slow)

	h.RelayToRoom("room-1", "other", "first", nil)
	h.RelayToRoom("room-1", "other", "second", nil)

	msgs := drain(slow)
	require.Len(t, msgs, 1, "overflow is dropped, not blocked on")
	assert.Equal(t, "first", msgs[0].Event)
}

func TestHubUnregisterKeepsReplacementConnection(t *testing.T) {
	h := NewHub(nil, nil, nil)

	old := newHubClient("room-1", "alice", 4)
	h.Register(old)

	// A reconnect replaces the registered connection for the same identity.
	replacement := newHubClient("room-1", "alice", 4)
	h.Register(replacement)

	// The stale connection's cleanup must not clobber the replacement.
	h.Unregister(old)
	assert.Equal(t, 1, h.ConnectedCount("room-1"))

	h.RelayToRoom("room-1", "other", EventParticipantJoined, nil)
	assert.Len(t, drain(replacement), 1)

	h.Unregister(replacement)
	assert.Equal(t, 0, h.ConnectedCount("room-1"))
}

func TestHubRelaySignalPayloadVerbatim(t *testing.T) {
	h := NewHub(nil, nil, nil)

	bob := newHubClient("room-1", "bob", 4)
	h.Register(bob)

	raw := json.RawMessage(`{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54400 typ host"}`)
	h.RelayToRoom("room-1", "alice", EventICECandidate, raw)

	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, raw, msgs[0].Data, "opaque signaling payloads are not re-encoded")
}
