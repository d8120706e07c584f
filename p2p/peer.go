package p2p

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lanhop/core/peer"
	"github.com/lanhop/core/proto"
)

// Role distinguishes which side of the handshake produced a Peer.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Peer is a live, authenticated connection (spec.md §3). It owns its
// stream half and runs a single dedicated task reading session frames
// off it (spec.md §4.7: "single task per Peer"); the manager never reads
// or writes the stream directly.
type Peer struct {
	ID       peer.Id
	Metadata peer.Metadata
	Role     Role

	conn net.Conn
	mgr  *Manager

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}

	log *logrus.Entry
}

func newPeer(mgr *Manager, conn net.Conn, id peer.Id, meta peer.Metadata, role Role) *Peer {
	return &Peer{
		ID:       id,
		Metadata: meta,
		Role:     role,
		conn:     conn,
		mgr:      mgr,
		closed:   make(chan struct{}),
		log:      mgr.log.WithField("peer", string(id)).WithField("role", role.String()),
	}
}

// Done is closed once the peer's stream has been torn down.
func (p *Peer) Done() <-chan struct{} { return p.closed }

// Close tears down the connection. Safe to call more than once.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	return err
}

func (p *Peer) sendSession(s proto.Session) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return proto.WriteSession(p.conn, s)
}

// run is the per-peer read loop: every inbound session frame is either a
// CtlRequest (surfaced to the application as an InboundSession) or a
// CtlResponse (resolved against a pending local request, if any). It
// terminates, and notifies the manager, when the stream closes.
func (p *Peer) run() {
	defer p.teardown()
	for {
		sess, err := proto.ReadSession(p.conn)
		if err != nil {
			p.log.WithError(err).Debug("peer stream closed")
			return
		}
		switch ctl := sess.Ctl.(type) {
		case proto.CtlRequest:
			p.mgr.deliverInbound(&InboundSession{
				PeerID:  p.ID,
				ID:      sess.ID,
				Request: ctl,
				peer:    p,
			})
		case proto.CtlResponse:
			p.mgr.resolveSession(sess.ID, ctl)
		}
	}
}

func (p *Peer) teardown() {
	p.Close()
	p.mgr.notifyDisconnected(p.ID)
}
