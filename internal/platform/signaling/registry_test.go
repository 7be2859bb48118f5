package signaling

import (
	"encoding/json"
	"sync"
	"testing"
)

// drain decodes everything currently queued for the peer.
func drain(t *testing.T, p *Peer) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data, ok := <-p.Send:
			if !ok {
				return out
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("undecodable queued message: %v", err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func countType(msgs []Message, typ string) int {
	n := 0
	for _, m := range msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func TestThreeJoinSequence(t *testing.T) {
	reg := NewRegistry()
	a, b, c := NewPeer(10), NewPeer(20), NewPeer(30)

	reg.Join("appt-1", a)
	reg.Join("appt-1", b)
	reg.Join("appt-1", c)

	aMsgs := drain(t, a)
	if len(aMsgs) != 3 {
		t.Fatalf("first joiner queued %d messages, want 3", len(aMsgs))
	}
	if aMsgs[0].Type != TypeRoomPeers || len(aMsgs[0].Peers) != 0 {
		t.Fatalf("first joiner should see an empty room, got %+v", aMsgs[0])
	}
	if countType(aMsgs, TypeUserJoined) != 2 {
		t.Fatalf("first joiner should see two joins, got %+v", aMsgs)
	}

	bMsgs := drain(t, b)
	if bMsgs[0].Type != TypeRoomPeers || len(bMsgs[0].Peers) != 1 || bMsgs[0].Peers[0].PeerID != a.ID {
		t.Fatalf("second joiner snapshot wrong: %+v", bMsgs[0])
	}
	if countType(bMsgs, TypeUserJoined) != 1 {
		t.Fatalf("second joiner should see one join, got %+v", bMsgs)
	}

	cMsgs := drain(t, c)
	if cMsgs[0].Type != TypeRoomPeers || len(cMsgs[0].Peers) != 2 {
		t.Fatalf("third joiner snapshot wrong: %+v", cMsgs[0])
	}
	if countType(cMsgs, TypeUserJoined) != 0 {
		t.Fatalf("third joiner saw joins after its own: %+v", cMsgs)
	}

	if got := reg.RoomSize("appt-1"); got != 3 {
		t.Fatalf("room size = %d, want 3", got)
	}
}

func TestLeaveBroadcastsAndDeletesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	a, b := NewPeer(10), NewPeer(20)
	reg.Join("appt-1", a)
	reg.Join("appt-1", b)
	drain(t, a)
	drain(t, b)

	if !reg.Leave("appt-1", b.ID) {
		t.Fatal("Leave should report membership")
	}
	aMsgs := drain(t, a)
	if len(aMsgs) != 1 || aMsgs[0].Type != TypeUserLeft || aMsgs[0].PeerID != b.ID {
		t.Fatalf("remaining peer should see user_left for %s, got %+v", b.ID, aMsgs)
	}
	if got := reg.RoomSize("appt-1"); got != 1 {
		t.Fatalf("room size = %d, want 1", got)
	}

	reg.Leave("appt-1", a.ID)
	if got := reg.RoomCount(); got != 0 {
		t.Fatalf("empty room should be deleted, have %d rooms", got)
	}
}

func TestLeaveUnknownPeer(t *testing.T) {
	reg := NewRegistry()
	a := NewPeer(10)
	reg.Join("appt-1", a)

	if reg.Leave("appt-1", "nope") {
		t.Fatal("Leave of a non-member should report false")
	}
	if reg.Leave("appt-9", a.ID) {
		t.Fatal("Leave of an unknown room should report false")
	}
}

func TestRelayTagsSender(t *testing.T) {
	reg := NewRegistry()
	a, b := NewPeer(10), NewPeer(20)
	reg.Join("appt-1", a)
	reg.Join("appt-1", b)
	drain(t, a)
	drain(t, b)

	payload := []byte(`{"sdp":"v=0"}`)
	reg.Relay("appt-1", a.ID, b.ID, TypeOffer, payload)

	bMsgs := drain(t, b)
	if len(bMsgs) != 1 || bMsgs[0].Type != TypeOfferReceived {
		t.Fatalf("target queued %+v, want one offer_received", bMsgs)
	}
	if bMsgs[0].Sender != a.ID {
		t.Fatalf("sender = %s, want %s", bMsgs[0].Sender, a.ID)
	}
	if string(bMsgs[0].Payload) != string(payload) {
		t.Fatalf("payload = %s, want verbatim forward", bMsgs[0].Payload)
	}
	if msgs := drain(t, a); len(msgs) != 0 {
		t.Fatalf("sender should receive nothing, got %+v", msgs)
	}
}

func TestRelayDropsUnknownTargetAndOutsiders(t *testing.T) {
	reg := NewRegistry()
	a, b := NewPeer(10), NewPeer(20)
	outsider := NewPeer(99)
	reg.Join("appt-1", a)
	reg.Join("appt-1", b)
	drain(t, a)
	drain(t, b)

	reg.Relay("appt-1", a.ID, "ghost", TypeAnswer, nil)
	reg.Relay("appt-1", outsider.ID, b.ID, TypeOffer, nil)
	reg.Relay("appt-9", a.ID, b.ID, TypeOffer, nil)
	reg.Relay("appt-1", a.ID, b.ID, "not_a_relay_type", nil)

	if msgs := drain(t, a); len(msgs) != 0 {
		t.Fatalf("unexpected messages for a: %+v", msgs)
	}
	if msgs := drain(t, b); len(msgs) != 0 {
		t.Fatalf("unexpected messages for b: %+v", msgs)
	}
}

func TestRelayMapsCandidateType(t *testing.T) {
	reg := NewRegistry()
	a, b := NewPeer(10), NewPeer(20)
	reg.Join("appt-1", a)
	reg.Join("appt-1", b)
	drain(t, a)
	drain(t, b)

	reg.Relay("appt-1", a.ID, b.ID, TypeICECandidate, []byte(`{"candidate":"x"}`))
	bMsgs := drain(t, b)
	if len(bMsgs) != 1 || bMsgs[0].Type != TypeCandidateReceived {
		t.Fatalf("got %+v, want candidate_received", bMsgs)
	}
}

func TestSlowReceiverIsEvicted(t *testing.T) {
	reg := NewRegistry()
	a, b := NewPeer(10), NewPeer(20)
	reg.Join("appt-1", a)
	reg.Join("appt-1", b)
	drain(t, a)
	drain(t, b)

	// Nobody drains b. Fill its queue, then one more delivery evicts it.
	for i := 0; i < sendBuffer; i++ {
		reg.Relay("appt-1", a.ID, b.ID, TypeICECandidate, nil)
	}
	reg.Relay("appt-1", a.ID, b.ID, TypeICECandidate, nil)

	if got := reg.RoomSize("appt-1"); got != 1 {
		t.Fatalf("room size = %d, want 1 after eviction", got)
	}

	aMsgs := drain(t, a)
	if countType(aMsgs, TypeUserLeft) != 1 {
		t.Fatalf("remaining peer should see user_left for the evicted one, got %+v", aMsgs)
	}

	// The evicted peer's queue is closed once drained.
	for range b.Send {
	}
	if _, ok := <-b.Send; ok {
		t.Fatal("evicted peer's send queue should be closed")
	}
}

func TestJoinRacingLastLeaveLandsInTrackedRoom(t *testing.T) {
	reg := NewRegistry()
	a := NewPeer(10)
	reg.Join("appt-7", a)

	// A joiner resolves the room pointer, then the last member leaves and
	// the registry drops the room before the add runs.
	reg.mu.RLock()
	stale := reg.rooms["appt-7"]
	reg.mu.RUnlock()

	reg.Leave("appt-7", a.ID)
	if reg.RoomCount() != 0 {
		t.Fatal("room should be dropped after the last leave")
	}

	b := NewPeer(20)
	if stale.add(b) {
		t.Fatal("a dropped room must refuse new members")
	}
	if len(drain(t, b)) != 0 {
		t.Fatal("a refused add must not queue room_peers")
	}

	// The real join path retries against a fresh room, so the peer ends up
	// where Relay and Leave can find it.
	reg.Join("appt-7", b)
	if got := reg.RoomSize("appt-7"); got != 1 {
		t.Fatalf("room size = %d, want the joiner tracked by the registry", got)
	}
	msgs := drain(t, b)
	if len(msgs) != 1 || msgs[0].Type != TypeRoomPeers {
		t.Fatalf("joiner queued %+v, want one room_peers", msgs)
	}
	if !reg.Leave("appt-7", b.ID) {
		t.Fatal("Leave should find the joiner in the tracked room")
	}
}

func TestConcurrentJoinLeaveChurn(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p := NewPeer(userID)
				reg.Join("appt-7", p)
				go func() {
					for range p.Send {
					}
				}()
				reg.Leave("appt-7", p.ID)
				p.Drop()
			}
		}(int64(i + 1))
	}
	wg.Wait()

	// Every join was matched by a leave; no orphaned room or member may
	// survive the churn.
	if got := reg.RoomSize("appt-7"); got != 0 {
		t.Fatalf("room size = %d after churn, want 0", got)
	}
	if got := reg.RoomCount(); got != 0 {
		t.Fatalf("room count = %d after churn, want 0", got)
	}
}

func TestRoomsAreIndependent(t *testing.T) {
	reg := NewRegistry()
	a, b := NewPeer(10), NewPeer(20)
	reg.Join("appt-1", a)
	reg.Join("appt-2", b)
	drain(t, a)
	drain(t, b)

	reg.Relay("appt-1", a.ID, b.ID, TypeOffer, nil)
	if msgs := drain(t, b); len(msgs) != 0 {
		t.Fatalf("cross-room relay must not deliver, got %+v", msgs)
	}
	if reg.RoomCount() != 2 {
		t.Fatalf("room count = %d, want 2", reg.RoomCount())
	}
}
