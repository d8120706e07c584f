// Package p2p implements the three tightly coupled core subsystems: the
// peer manager registry/event hub, the connection handshake, and the
// per-peer session transport. Discovery lives in the sibling discovery
// package; Manager glues the two together.
package p2p

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lanhop/core/discovery"
	"github.com/lanhop/core/p2perr"
	"github.com/lanhop/core/peer"
	"github.com/lanhop/core/proto"
)

const (
	// handshakeStepTimeout bounds every individual receive during the
	// handshake (spec.md §4.5).
	handshakeStepTimeout = 1 * time.Second
	// dialTimeout bounds a single TCP connect attempt to a candidate
	// address; not named by spec.md, a practical bound on top of it.
	dialTimeout = 5 * time.Second
)

// registries holds the three peer maps the manager exclusively owns, per
// spec.md §3's ownership note. Only run() ever touches them.
type registries struct {
	known      map[peer.Id]*peer.Candidate
	discovered map[peer.Id]*peer.Candidate
	connected  map[peer.Id]*Peer
	sessions   map[uint64]chan proto.CtlResponse
	nextSessID uint64
}

type queryFunc func(reg *registries)

// Manager is the in-memory peer registry and event fan-in/fan-out hub
// (spec.md §4.4). Construct one with Start.
type Manager struct {
	self  peer.Metadata
	dedup uint32

	disc *discovery.Service

	query    chan queryFunc
	addKnown chan *peer.Candidate

	internal chan internalEvent
	app      chan P2pEvent
	inbound  chan *InboundSession

	quit chan struct{}
	wg   sync.WaitGroup
	log  *logrus.Entry
}

func newManager(self peer.Metadata, dedup uint32, disc *discovery.Service, log *logrus.Entry) *Manager {
	return &Manager{
		self:     self,
		dedup:    dedup,
		disc:     disc,
		query:    make(chan queryFunc),
		addKnown: make(chan *peer.Candidate, 64),
		// Intra-core control plane: generously buffered in place of a true
		// unbounded channel, which Go has no primitive for.
		internal: make(chan internalEvent, 4096),
		app:      make(chan P2pEvent, 64),
		inbound:  make(chan *InboundSession, 64),
		quit:     make(chan struct{}),
		log:      log,
	}
}

// Events returns the application-facing event stream.
func (m *Manager) Events() <-chan P2pEvent { return m.app }

// Inbound returns the stream of CtlRequests received from connected peers.
func (m *Manager) Inbound() <-chan *InboundSession { return m.inbound }

// GetMetadata returns this node's own advertised metadata.
func (m *Manager) GetMetadata() peer.Metadata { return m.self }

// AddKnownPeer records a paired peer so it can later be discovered and
// connected to (spec.md §4.4 add_known_peer).
func (m *Manager) AddKnownPeer(c *peer.Candidate) {
	select {
	case m.addKnown <- c:
	case <-m.quit:
	}
}

// RequestPresence emits a PresenceRequest on the discovery channel.
// Idempotent: repeated calls just resend the same tagged request.
func (m *Manager) RequestPresence() {
	select {
	case m.disc.Send() <- proto.PresenceRequest{Dedup: m.dedup}:
	case <-m.quit:
	}
}

// GetDiscoveredPeers returns a snapshot of discovered peer metadata.
func (m *Manager) GetDiscoveredPeers() []peer.Metadata {
	var out []peer.Metadata
	m.doQuery(func(reg *registries) {
		out = make([]peer.Metadata, 0, len(reg.discovered))
		for _, c := range reg.discovered {
			out = append(out, c.Metadata)
		}
	})
	return out
}

// IsDiscovered reports whether id has been observed on the network.
func (m *Manager) IsDiscovered(id peer.Id) bool {
	var ok bool
	m.doQuery(func(reg *registries) { _, ok = reg.discovered[id] })
	return ok
}

// IsConnected reports whether id currently has a live Peer.
func (m *Manager) IsConnected(id peer.Id) bool {
	var ok bool
	m.doQuery(func(reg *registries) { _, ok = reg.connected[id] })
	return ok
}

// ConnectToPeer opens a TCP connection to a discovered peer's candidate
// addresses in order, running the client handshake on the first that
// accepts a connection, and returns the resulting Peer (spec.md §4.4).
func (m *Manager) ConnectToPeer(ctx context.Context, id peer.Id) (*Peer, error) {
	var (
		cand      *peer.Candidate
		connected bool
	)
	m.doQuery(func(reg *registries) {
		if _, ok := reg.connected[id]; ok {
			connected = true
			return
		}
		if c, ok := reg.discovered[id]; ok {
			cand = c.Clone()
		}
	})
	if connected {
		return nil, p2perr.ErrDuplicate
	}
	if cand == nil {
		return nil, p2perr.ErrNotFound
	}

	for _, addr := range cand.AddrList() {
		conn, err := net.DialTimeout("tcp", addr.String(), dialTimeout)
		if err != nil {
			m.log.WithError(err).WithField("addr", addr).Debug("dial attempt failed")
			continue
		}
		p, err := connectHandshake(m, conn, cand)
		if err != nil {
			conn.Close()
			return nil, err
		}
		m.registerConnection(p)
		return p, nil
	}
	return nil, p2perr.ErrAddrExhausted
}

// SendPeer issues a new session request to a connected peer and blocks
// for the matching response, up to ctx's deadline (spec.md §6 SendPeer).
func (m *Manager) SendPeer(ctx context.Context, id peer.Id, req proto.CtlRequest) (proto.CtlResponse, error) {
	var p *Peer
	m.doQuery(func(reg *registries) { p = reg.connected[id] })
	if p == nil {
		return proto.CtlResponse{}, p2perr.ErrNotFound
	}

	reply := make(chan proto.CtlResponse, 1)
	result := make(chan uint64, 1)
	select {
	case m.internal <- evRegisterSession{reply: reply, result: result}:
	case <-m.quit:
		return proto.CtlResponse{}, p2perr.ErrChannelClosed
	}
	var sessID uint64
	select {
	case sessID = <-result:
	case <-m.quit:
		return proto.CtlResponse{}, p2perr.ErrChannelClosed
	}

	if err := p.sendSession(proto.Session{ID: sessID, Ctl: req}); err != nil {
		m.unregisterSession(sessID)
		return proto.CtlResponse{}, err
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		m.unregisterSession(sessID)
		return proto.CtlResponse{}, ctx.Err()
	case <-p.Done():
		m.unregisterSession(sessID)
		return proto.CtlResponse{}, p2perr.ErrDisconnect
	case <-m.quit:
		return proto.CtlResponse{}, p2perr.ErrChannelClosed
	}
}

// getPeerCandidate returns the discovered entry for id if present, else
// the known entry, else nil. Used by the accept-side handshake to
// authenticate unsolicited inbound connections (spec.md §4.4).
func (m *Manager) getPeerCandidate(id peer.Id) *peer.Candidate {
	var out *peer.Candidate
	m.doQuery(func(reg *registries) {
		if c, ok := reg.discovered[id]; ok {
			out = c.Clone()
			return
		}
		if c, ok := reg.known[id]; ok {
			out = c.Clone()
		}
	})
	return out
}

func (m *Manager) doQuery(fn queryFunc) {
	done := make(chan struct{})
	wrapped := func(reg *registries) {
		fn(reg)
		close(done)
	}
	select {
	case m.query <- wrapped:
	case <-m.quit:
		return
	}
	select {
	case <-done:
	case <-m.quit:
	}
}

func (m *Manager) registerConnection(p *Peer) {
	select {
	case m.internal <- evNewConnection{peer: p}:
	case <-m.quit:
	}
}

func (m *Manager) notifyDisconnected(id peer.Id) {
	select {
	case m.internal <- evPeerDisconnected{id: id}:
	case <-m.quit:
	}
}

func (m *Manager) resolveSession(id uint64, resp proto.CtlResponse) {
	select {
	case m.internal <- evResolveSession{id: id, resp: resp}:
	case <-m.quit:
	}
}

func (m *Manager) unregisterSession(id uint64) {
	select {
	case m.internal <- evUnregisterSession{id: id}:
	case <-m.quit:
	}
}

func (m *Manager) deliverInbound(s *InboundSession) {
	select {
	case m.inbound <- s:
	case <-m.quit:
	}
}

func (m *Manager) emit(ev P2pEvent) {
	select {
	case m.app <- ev:
	default:
		m.log.WithField("event", ev).Warn("application event channel full, dropping event")
	}
}

// run is the single top-level task per Manager (spec.md §4.7): it is the
// only code that ever mutates the three registries or the session map.
func (m *Manager) run() {
	defer m.wg.Done()
	reg := &registries{
		known:      make(map[peer.Id]*peer.Candidate),
		discovered: make(map[peer.Id]*peer.Candidate),
		connected:  make(map[peer.Id]*Peer),
		sessions:   make(map[uint64]chan proto.CtlResponse),
	}

	for {
		select {
		case <-m.quit:
			return

		case q := <-m.query:
			q(reg)

		case c := <-m.addKnown:
			reg.known[c.ID] = c

		case r := <-m.disc.Events():
			m.dispatchDiscovery(reg, r)

		case ev := <-m.internal:
			m.dispatchInternal(reg, ev)
		}
	}
}

func (m *Manager) dispatchDiscovery(reg *registries, r discovery.Received) {
	switch ev := r.Event.(type) {
	case proto.PresenceRequest:
		// discovery.Service already filters self-echoes by dedup; reaching
		// here means a genuine remote request.
		m.handlePresenceRequest(reg)
	case proto.PresenceResponse:
		m.handlePeerDiscovered(reg, ev.Metadata)
	}
}

// handlePeerDiscovered implements spec.md §4.4's handle_peer_discovered.
func (m *Manager) handlePeerDiscovered(reg *registries, meta peer.Metadata) {
	id := meta.ID
	if _, ok := reg.connected[id]; ok {
		return
	}
	if _, ok := reg.discovered[id]; ok {
		return
	}
	known, ok := reg.known[id]
	if !ok {
		return // unpaired peers are never surfaced
	}
	candidate := peer.NewCandidate(meta, known.Auth)
	candidate.AddAddr(meta.Addr)
	reg.discovered[id] = candidate
	reg.known[id] = candidate
	m.emit(PeerDiscovered{Metadata: meta})
}

// handlePresenceRequest implements spec.md §4.4's handle_presence_request.
func (m *Manager) handlePresenceRequest(reg *registries) {
	select {
	case m.disc.Send() <- proto.PresenceResponse{Metadata: m.self}:
	default:
		m.log.Warn("discovery send channel full, dropping presence response")
	}
}

func (m *Manager) dispatchInternal(reg *registries, ev internalEvent) {
	switch e := ev.(type) {
	case evNewConnection:
		m.handleNewConnection(reg, e.peer)
	case evPeerDisconnected:
		m.handlePeerDisconnected(reg, e.id)
	case evRegisterSession:
		reg.nextSessID++
		id := reg.nextSessID
		reg.sessions[id] = e.reply
		e.result <- id
	case evUnregisterSession:
		delete(reg.sessions, e.id)
	case evResolveSession:
		if ch, ok := reg.sessions[e.id]; ok {
			delete(reg.sessions, e.id)
			ch <- e.resp
		}
	}
}

// handleNewConnection implements spec.md §4.4's handle_new_connection.
func (m *Manager) handleNewConnection(reg *registries, p *Peer) {
	reg.connected[p.ID] = p
	go p.run()
	m.emit(PeerConnected{Peer: p})
}

// handlePeerDisconnected implements spec.md §4.4's peer_disconnected.
func (m *Manager) handlePeerDisconnected(reg *registries, id peer.Id) {
	delete(reg.connected, id)
	m.emit(PeerDisconnected{ID: id})
}

// Stop shuts the manager's event loop and its discovery service down.
func (m *Manager) Stop() {
	close(m.quit)
	m.wg.Wait()
	m.disc.Close()
}
