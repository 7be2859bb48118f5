package signaling

import (
	"sync"

	"github.com/google/uuid"
)

// sendBuffer is the per-peer outbound queue depth. A peer that cannot drain
// this many messages is dropped from its room.
const sendBuffer = 256

// Peer is one WebSocket connection's presence in a room. Send is drained by
// the connection's write pump; closing it ends the connection.
type Peer struct {
	ID     string
	UserID int64
	Send   chan []byte

	closeOnce sync.Once
}

// NewPeer creates a peer with a fresh id and an empty send queue.
func NewPeer(userID int64) *Peer {
	return &Peer{
		ID:     uuid.New().String(),
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

// Drop closes the peer's send queue exactly once.
func (p *Peer) Drop() {
	p.closeOnce.Do(func() { close(p.Send) })
}

// trySend queues data without blocking. A full queue is a failure.
func (p *Peer) trySend(data []byte) bool {
	select {
	case p.Send <- data:
		return true
	default:
		return false
	}
}

// Room holds the current members of one consultation room. Each room has its
// own lock so traffic in one consultation never stalls another. dead is set
// under both the registry lock and the room lock when the registry drops the
// room, so a join that resolved the pointer earlier cannot land in it.
type Room struct {
	name  string
	mu    sync.Mutex
	peers map[string]*Peer
	dead  bool
}

func newRoom(name string) *Room {
	return &Room{name: name, peers: make(map[string]*Peer)}
}

// add inserts the peer, queues the current member list to it, and announces
// it to everyone else. Queueing room_peers under the lock guarantees the
// joiner sees the snapshot before any later room event. It reports false for
// a room the registry has already dropped; the caller must resolve a fresh
// room and try again.
func (r *Room) add(p *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dead {
		return false
	}

	existing := make([]PeerInfo, 0, len(r.peers))
	for _, member := range r.peers {
		existing = append(existing, PeerInfo{PeerID: member.ID, UserID: member.UserID})
	}
	r.peers[p.ID] = p
	p.trySend(encode(Message{Type: TypeRoomPeers, Peers: existing}))

	data := encode(Message{Type: TypeUserJoined, PeerID: p.ID, UserID: p.UserID})
	r.deliverLocked(data, p.ID)
	return true
}

// remove deletes the peer and tells the remaining members. It reports
// whether the peer was a member and whether the room is now empty.
func (r *Room) remove(peerID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[peerID]; !ok {
		return false, len(r.peers) == 0
	}
	delete(r.peers, peerID)

	data := encode(Message{Type: TypeUserLeft, PeerID: peerID})
	r.deliverLocked(data, "")

	return true, len(r.peers) == 0
}

// relay forwards a negotiation message to one member. Unknown targets are
// dropped; delivery is best effort.
func (r *Room) relay(senderID, targetID string, outType string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[senderID]; !ok {
		return
	}
	target, ok := r.peers[targetID]
	if !ok {
		return
	}
	data := encode(Message{Type: outType, Sender: senderID, Payload: payload})
	if !target.trySend(data) {
		r.evictLocked(target)
	}
}

// deliverLocked fans data out to every member except skipID, evicting peers
// whose queues are full. Callers hold r.mu.
func (r *Room) deliverLocked(data []byte, skipID string) {
	var stalled []*Peer
	for _, member := range r.peers {
		if member.ID == skipID {
			continue
		}
		if !member.trySend(data) {
			stalled = append(stalled, member)
		}
	}
	for _, member := range stalled {
		r.evictLocked(member)
	}
}

// evictLocked removes a peer that stopped draining its queue. The departure
// notice to the others is best effort; closing Send ends the peer's
// connection, which triggers its normal leave path. Callers hold r.mu.
func (r *Room) evictLocked(p *Peer) {
	if _, ok := r.peers[p.ID]; !ok {
		return
	}
	delete(r.peers, p.ID)
	p.Drop()

	data := encode(Message{Type: TypeUserLeft, PeerID: p.ID})
	for _, member := range r.peers {
		member.trySend(data)
	}
}

func (r *Room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Registry tracks live rooms. Its lock covers only the room map; membership
// changes happen under each room's own lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Join adds the peer to the named room, creating it on first join. The peer
// receives room_peers; existing members receive user_joined. A room can be
// dropped by a racing last-member leave between the lookup and the add, in
// which case the add is refused and the join resolves a fresh room.
func (g *Registry) Join(roomName string, p *Peer) {
	for {
		g.mu.Lock()
		room, ok := g.rooms[roomName]
		if !ok {
			room = newRoom(roomName)
			g.rooms[roomName] = room
		}
		g.mu.Unlock()

		if room.add(p) {
			return
		}
	}
}

// Leave removes the peer from the named room and deletes the room once it is
// empty. It reports whether the peer was a member.
func (g *Registry) Leave(roomName, peerID string) bool {
	g.mu.RLock()
	room, ok := g.rooms[roomName]
	g.mu.RUnlock()
	if !ok {
		return false
	}

	removed, empty := room.remove(peerID)
	if empty {
		g.mu.Lock()
		room.mu.Lock()
		if len(room.peers) == 0 && g.rooms[roomName] == room {
			room.dead = true
			delete(g.rooms, roomName)
		}
		room.mu.Unlock()
		g.mu.Unlock()
	}
	return removed
}

// Relay forwards a negotiation message within a room.
func (g *Registry) Relay(roomName, senderID, targetID, inType string, payload []byte) {
	outType, ok := relayedType[inType]
	if !ok {
		return
	}
	g.mu.RLock()
	room, found := g.rooms[roomName]
	g.mu.RUnlock()
	if !found {
		return
	}
	room.relay(senderID, targetID, outType, payload)
}

// RoomCount returns the number of live rooms.
func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// RoomSize returns the member count of a room, zero when it does not exist.
func (g *Registry) RoomSize(roomName string) int {
	g.mu.RLock()
	room, ok := g.rooms[roomName]
	g.mu.RUnlock()
	if !ok {
		return 0
	}
	return room.size()
}
