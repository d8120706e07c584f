package p2p

import (
	"net"

	"github.com/lanhop/core/peer"
	"github.com/lanhop/core/proto"
)

// internalEvent carries everything that must mutate Manager state onto
// the single run() loop goroutine: per spec.md §9, "session state lives
// in a single map owned by the core's main event loop... all mutations
// happen inside the central select," and the same discipline applies to
// the three peer registries (§4.7).
type internalEvent interface {
	isInternal()
}

type evNewConnection struct {
	peer *Peer
}

func (evNewConnection) isInternal() {}

type evPeerDisconnected struct {
	id peer.Id
}

func (evPeerDisconnected) isInternal() {}

type evDiscoveryReceived struct {
	ev     proto.DiscoveryEvent
	source *net.UDPAddr
}

func (evDiscoveryReceived) isInternal() {}

// evRegisterSession asks the loop to allocate the next session id and
// bind it to reply, returning the id on result.
type evRegisterSession struct {
	reply  chan proto.CtlResponse
	result chan uint64
}

func (evRegisterSession) isInternal() {}

type evUnregisterSession struct {
	id uint64
}

func (evUnregisterSession) isInternal() {}

// evResolveSession delivers an inbound CtlResponse to whichever pending
// local request registered the matching session id, if any.
type evResolveSession struct {
	id   uint64
	resp proto.CtlResponse
}

func (evResolveSession) isInternal() {}
