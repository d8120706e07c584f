package p2p

import "github.com/lanhop/core/peer"

// P2pEvent is the event stream the application observes for discovery
// and connection lifecycle changes (spec.md §6).
type P2pEvent interface {
	isP2pEvent()
}

// PeerDiscovered fires when a known peer's presence is observed on the
// network for the first time. Discovered entries are kept for the
// manager's lifetime, so it fires at most once per peer id.
type PeerDiscovered struct {
	Metadata peer.Metadata
}

func (PeerDiscovered) isP2pEvent() {}

// PeerConnected fires once a handshake (either role) completes and a
// live Peer is available.
type PeerConnected struct {
	Peer *Peer
}

func (PeerConnected) isP2pEvent() {}

// PeerDisconnected fires when a previously connected peer's stream closes.
type PeerDisconnected struct {
	ID peer.Id
}

func (PeerDisconnected) isP2pEvent() {}
