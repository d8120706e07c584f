package lanhop

import "github.com/lanhop/core/peer"

// CoreEvent is what a UI observes from a running Node: discovery
// results and the lifecycle of inbound/outbound control requests.
// Grounded on node.rs's CoreEvent enum.
type CoreEvent interface {
	isCoreEvent()
}

// Discovered fires whenever the underlying p2p.PeerDiscovered event
// surfaces a known peer's presence.
type Discovered struct {
	Metadata peer.Metadata
}

func (Discovered) isCoreEvent() {}

// AskLaunchUri fires when a connected peer asks this node to open a URI
// and the node's configuration requires a human decision
// (NodeConfig.AutoAccept == false). The peer is answered CtlWaiting at
// once; Node.Ack later sends the decision under the same session id.
type AskLaunchUri struct {
	Peer      peer.Id
	SessionID uint64
	URI       string
}

func (AskLaunchUri) isCoreEvent() {}

// LaunchUri fires when a connected peer's URI request was accepted,
// either automatically (AutoAccept) or via a prior Ack.
type LaunchUri struct {
	Peer      peer.Id
	SessionID uint64
	URI       string
}

func (LaunchUri) isCoreEvent() {}

// PeerCtlWaiting/Success/Cancel/Failed report the outcome of a request
// this node sent to a peer (via SendLaunchUri), mirroring the
// CtlResponse the peer answered with.
type PeerCtlWaiting struct{ Peer peer.Id }

func (PeerCtlWaiting) isCoreEvent() {}

type PeerCtlSuccess struct{ Peer peer.Id }

func (PeerCtlSuccess) isCoreEvent() {}

type PeerCtlCancel struct{ Peer peer.Id }

func (PeerCtlCancel) isCoreEvent() {}

type PeerCtlFailed struct{ Peer peer.Id }

func (PeerCtlFailed) isCoreEvent() {}
