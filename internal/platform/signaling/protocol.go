// Package signaling relays WebRTC session negotiation between the
// participants of a consultation room. The server never inspects SDP or ICE
// payloads; it verifies who may be in a room and forwards envelopes between
// peers.
package signaling

import "encoding/json"

// Inbound message types.
const (
	TypeJoinRoom     = "join_room"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice_candidate"
	TypeLeaveRoom    = "leave_room"
)

// Outbound message types.
const (
	TypeRoomPeers         = "room_peers"
	TypeJoinError         = "join_error"
	TypeUserJoined        = "user_joined"
	TypeUserLeft          = "user_left"
	TypeOfferReceived     = "offer_received"
	TypeAnswerReceived    = "answer_received"
	TypeCandidateReceived = "candidate_received"
)

// relayedType maps an inbound negotiation message to the type its target
// receives.
var relayedType = map[string]string{
	TypeOffer:        TypeOfferReceived,
	TypeAnswer:       TypeAnswerReceived,
	TypeICECandidate: TypeCandidateReceived,
}

// PeerInfo identifies a room member to other members.
type PeerInfo struct {
	PeerID string `json:"peer_id"`
	UserID int64  `json:"user_id"`
}

// Message is the single envelope used in both directions. Fields are
// populated per message type; Payload carries SDP or ICE data opaquely.
type Message struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	UserID  int64           `json:"user_id,omitempty"`
	Target  string          `json:"target,omitempty"`
	Sender  string          `json:"sender,omitempty"`
	PeerID  string          `json:"peer_id,omitempty"`
	Peers   []PeerInfo      `json:"peers,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encode(m Message) []byte {
	data, _ := json.Marshal(m)
	return data
}
