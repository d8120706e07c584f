// Package lanhop is the orchestration layer above p2p: it turns the
// core's generic discovery/connection/session primitives into the
// application this repo actually ships — QR pairing, a start/stop
// presence loop, and a single concrete control command (asking a peer
// to open a URI). Grounded on original_source/lib/core/src/node.rs,
// narrowed per spec.md §9: session transport bookkeeping lives in
// p2p.Manager's own event loop, not here, so Node only tracks the
// application-level "awaiting a human decision" table for inbound
// requests it chooses not to auto-accept.
package lanhop

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lanhop/core/p2p"
	"github.com/lanhop/core/peer"
	"github.com/lanhop/core/proto"
	"github.com/lanhop/core/storage"
)

// presenceInterval is how often the discovery loop re-announces
// presence while running, matching node.rs's sleep(Duration::from_secs(2)).
const presenceInterval = 2 * time.Second

// ConfigStore is the persistence boundary Node depends on; storage.LevelDBStore
// satisfies it, and tests can substitute an in-memory fake.
type ConfigStore interface {
	GetConfig() (*storage.NodeConfig, error)
	SetConfig(*storage.NodeConfig) error
	GetKnownPeers() ([]*peer.Candidate, error)
	SetKnownPeers([]*peer.Candidate) error
}

// Node owns a Manager and the application-level state layered on top of
// it: the node's own configuration, its known-peers cache, pending
// inbound requests awaiting a human decision, and the discovery loop's
// lifetime.
type Node struct {
	mgr   *p2p.Manager
	store ConfigStore
	log   *logrus.Entry

	mu    sync.Mutex
	conf  storage.NodeConfig
	known map[peer.Id]*peer.Candidate

	discoveryMu     sync.Mutex
	discoveryCancel context.CancelFunc

	pendingMu sync.Mutex
	pending   map[uint64]*p2p.InboundSession

	events chan CoreEvent
	quit   chan struct{}
	wg     sync.WaitGroup
}

// New builds a Node around an already-started Manager, loading any
// persisted configuration and known peers from store (both optional:
// a nil store runs with defaults and no persistence).
func New(mgr *p2p.Manager, store ConfigStore, log *logrus.Entry) (*Node, error) {
	n := &Node{
		mgr:     mgr,
		store:   store,
		log:     log,
		known:   make(map[peer.Id]*peer.Candidate),
		pending: make(map[uint64]*p2p.InboundSession),
		events:  make(chan CoreEvent, 64),
		quit:    make(chan struct{}),
	}

	if store != nil {
		cfg, err := store.GetConfig()
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			n.conf = *cfg
		}
		peers, err := store.GetKnownPeers()
		if err != nil {
			return nil, err
		}
		for _, c := range peers {
			n.known[c.ID] = c
			mgr.AddKnownPeer(c)
		}
	}

	n.wg.Add(2)
	go n.pumpP2pEvents()
	go n.pumpInbound()
	return n, nil
}

// Events returns the application-facing event stream a UI should drain.
func (n *Node) Events() <-chan CoreEvent { return n.events }

// GetConfig returns a copy of the node's current configuration.
func (n *Node) GetConfig() storage.NodeConfig {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conf
}

// SetConfig replaces the node's configuration (preserving its id, which
// is taken from the first SetConfig on a node without one and never
// changed by the caller afterwards) and persists it, matching node.rs's
// handle_command SetConfig arm.
func (n *Node) SetConfig(next storage.NodeConfig) error {
	n.mu.Lock()
	if n.conf.ID != "" {
		next.ID = n.conf.ID
	}
	n.conf = next
	n.mu.Unlock()

	if n.store == nil {
		return nil
	}
	return n.store.SetConfig(&next)
}

// StartDiscovery begins (if not already running) a loop that
// periodically announces this node's presence on the discovery
// multicast group, matching node.rs's StartDiscovery command.
func (n *Node) StartDiscovery() {
	n.discoveryMu.Lock()
	defer n.discoveryMu.Unlock()
	if n.discoveryCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.discoveryCancel = cancel

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.log.Debug("request presence loop started")
		n.mgr.RequestPresence()
		ticker := time.NewTicker(presenceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				n.log.Debug("request presence loop stopped")
				return
			case <-ticker.C:
				n.mgr.RequestPresence()
			}
		}
	}()
}

// StopDiscovery cancels a running presence loop, if any.
func (n *Node) StopDiscovery() {
	n.discoveryMu.Lock()
	defer n.discoveryMu.Unlock()
	if n.discoveryCancel != nil {
		n.discoveryCancel()
		n.discoveryCancel = nil
	}
}

// SendLaunchUri asks a connected peer to open uri, blocking for its
// response up to ctx's deadline. Matches node.rs's SendPeer command
// specialized to the one request vocabulary this repo defines. The
// outcome is both returned directly and emitted as a CoreEvent, so a
// UI driven purely by Events() still observes it (node.rs's
// handle_event SessionResult arm, folded in here since this repo's
// SendPeer is synchronous rather than spawned).
func (n *Node) SendLaunchUri(ctx context.Context, id peer.Id, uri string) (proto.CtlResponse, error) {
	resp, err := n.mgr.SendPeer(ctx, id, launchUriRequest(uri))
	if err != nil {
		return resp, err
	}
	switch resp.Status {
	case proto.CtlSuccess:
		n.emit(PeerCtlSuccess{Peer: id})
	case proto.CtlWaiting:
		n.emit(PeerCtlWaiting{Peer: id})
	case proto.CtlCancel:
		n.emit(PeerCtlCancel{Peer: id})
	case proto.CtlError:
		n.emit(PeerCtlFailed{Peer: id})
	}
	return resp, nil
}

// Ack answers a previously deferred inbound request (one that arrived
// while AutoAccept was false and so was surfaced as AskLaunchUri), akin
// to node.rs's Ack command resolving a pending State.sessions entry.
func (n *Node) Ack(sessionID uint64, accept bool) error {
	n.pendingMu.Lock()
	s, ok := n.pending[sessionID]
	delete(n.pending, sessionID)
	n.pendingMu.Unlock()
	if !ok {
		return nil
	}

	resp := proto.CtlResponse{Status: proto.CtlCancel}
	if accept {
		resp = proto.CtlResponse{Status: proto.CtlSuccess}
		n.emit(LaunchUri{Peer: s.PeerID, SessionID: s.ID, URI: string(s.Request.Payload)})
	}
	return s.Reply(resp)
}

// Stop tears down the discovery loop and the event-pump goroutines.
func (n *Node) Stop() {
	n.StopDiscovery()
	close(n.quit)
	n.wg.Wait()
}

func (n *Node) pumpP2pEvents() {
	defer n.wg.Done()
	for {
		select {
		case <-n.quit:
			return
		case ev, ok := <-n.mgr.Events():
			if !ok {
				return
			}
			n.handleP2pEvent(ev)
		}
	}
}

func (n *Node) handleP2pEvent(ev p2p.P2pEvent) {
	switch e := ev.(type) {
	case p2p.PeerDiscovered:
		n.emit(Discovered{Metadata: e.Metadata})
	case p2p.PeerDisconnected:
		// no CoreEvent in the original for disconnects; nothing to surface.
	case p2p.PeerConnected:
		// inbound requests on this connection arrive via mgr.Inbound(),
		// handled by pumpInbound; nothing to do here.
		_ = e
	}
}

func (n *Node) pumpInbound() {
	defer n.wg.Done()
	for {
		select {
		case <-n.quit:
			return
		case s, ok := <-n.mgr.Inbound():
			if !ok {
				return
			}
			n.handleInbound(s)
		}
	}
}

// handleInbound implements node.rs's InboundSession handling, specialized
// to the one request this repo understands.
func (n *Node) handleInbound(s *p2p.InboundSession) {
	if s.Request.Method != methodLaunchUri {
		n.log.WithField("method", s.Request.Method).Warn("unhandled app ctl request")
		_ = s.Reply(errorResponse(CTLUnknownErr))
		return
	}

	uri := string(s.Request.Payload)
	autoAccept := n.GetConfig().AutoAccept

	if !autoAccept {
		n.pendingMu.Lock()
		n.pending[s.ID] = s
		n.pendingMu.Unlock()
		n.emit(AskLaunchUri{Peer: s.PeerID, SessionID: s.ID, URI: uri})
		_ = s.Reply(proto.CtlResponse{Status: proto.CtlWaiting})
		return
	}

	n.emit(LaunchUri{Peer: s.PeerID, SessionID: s.ID, URI: uri})
	_ = s.Reply(proto.CtlResponse{Status: proto.CtlSuccess})
}

func (n *Node) emit(ev CoreEvent) {
	select {
	case n.events <- ev:
	default:
		n.log.WithField("event", ev).Warn("core event channel full, dropping event")
	}
}
