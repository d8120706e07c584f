package p2p

import (
	"crypto/rand"
	"encoding/binary"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/lanhop/core/discovery"
	"github.com/lanhop/core/log"
	"github.com/lanhop/core/peer"
)

// Config describes how to bring up a Manager: the local node's identity,
// where to listen for inbound TCP connections, and the multicast group
// discovery should join.
type Config struct {
	ID       peer.Id
	Name     string
	Device   peer.DeviceType
	ListenIP net.IP

	MulticastGroup *net.UDPAddr // defaults to discovery.DefaultGroup() if nil

	Logger *logrus.Entry
}

// Start brings up a Manager: it binds the TCP listen socket, joins the
// multicast discovery group, and spawns the single top-level event loop
// task (spec.md §4.7) plus the accept loop. Mirrors
// P2pManager::new/event_loop wiring in the original implementation.
func Start(cfg Config) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New("p2p")
	}

	group := cfg.MulticastGroup
	if group == nil {
		group = discovery.DefaultGroup()
	}

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: cfg.ListenIP, Port: 0})
	if err != nil {
		return nil, err
	}

	dedup, err := randomDedup()
	if err != nil {
		listener.Close()
		return nil, err
	}

	disc, err := discovery.Listen(group, dedup, log.New("discovery"))
	if err != nil {
		listener.Close()
		return nil, err
	}

	self := peer.Metadata{
		ID:   cfg.ID,
		Type: cfg.Device,
		Name: cfg.Name,
		Addr: listener.Addr().(*net.TCPAddr),
	}

	mgr := newManager(self, dedup, disc, logger)
	mgr.wg.Add(1)
	go mgr.run()
	mgr.wg.Add(1)
	go mgr.acceptLoop(listener)

	return mgr, nil
}

func randomDedup() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// acceptLoop accepts inbound TCP connections and runs the server-role
// handshake on each in its own goroutine, so a slow or hostile peer
// blocked on its handshake timeout never stalls other accepts.
func (m *Manager) acceptLoop(listener *net.TCPListener) {
	defer m.wg.Done()
	defer listener.Close()

	go func() {
		<-m.quit
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-m.quit:
				return
			default:
				m.log.WithError(err).Warn("accept failed")
				return
			}
		}
		go m.handleAccept(conn)
	}
}

func (m *Manager) handleAccept(conn net.Conn) {
	p, err := acceptHandshake(m, conn)
	if err != nil {
		m.log.WithError(err).Debug("inbound handshake failed")
		conn.Close()
		return
	}
	m.registerConnection(p)
}
