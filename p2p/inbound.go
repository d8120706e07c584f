package p2p

import (
	"github.com/lanhop/core/peer"
	"github.com/lanhop/core/proto"
)

// InboundSession is a CtlRequest received from a connected peer, paired
// with a reply handle back to the same session id on the same stream
// (spec.md §4.6: "the application writes a Response with the same id").
type InboundSession struct {
	PeerID  peer.Id
	ID      uint64
	Request proto.CtlRequest

	peer *Peer
}

// Reply answers the inbound request with resp, using the session id it
// arrived with.
func (s *InboundSession) Reply(resp proto.CtlResponse) error {
	return s.peer.sendSession(proto.Session{ID: s.ID, Ctl: resp})
}
