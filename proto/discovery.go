// Package proto implements the wire codecs for the three frame families
// used by this core: discovery (UDP multicast), connection (the TCP
// handshake), and session (post-handshake request/response pairs). Each
// family shares the same outer shape — a 4-byte big-endian length prefix
// around a discriminant byte plus a variant body — per the byte layout
// spec.md §6 lays out; session frames put their u64 id ahead of the
// discriminant.
package proto

import "github.com/lanhop/core/peer"

// DiscoveryEvent is one of PresenceRequest or PresenceResponse, the two
// messages exchanged over the multicast discovery channel.
type DiscoveryEvent interface {
	isDiscoveryEvent()
}

// PresenceRequest announces the sender's presence and carries a dedup
// nonce so the sender can recognize and drop its own multicast echoes.
type PresenceRequest struct {
	Dedup uint32
}

func (PresenceRequest) isDiscoveryEvent() {}

// PresenceResponse answers a PresenceRequest with the responder's metadata.
type PresenceResponse struct {
	Metadata peer.Metadata
}

func (PresenceResponse) isDiscoveryEvent() {}

const (
	tagPresenceRequest  byte = 0x00
	tagPresenceResponse byte = 0x01
)
