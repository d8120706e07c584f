// Package discovery implements the multicast UDP presence protocol:
// a socket joined to a well-known group, a main loop multiplexing
// outgoing sends against incoming frames, and self-echo suppression via
// a per-process dedup nonce (spec.md §4.3).
package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/lanhop/core/proto"
)

const (
	// DefaultMulticastIP is the well-known discovery group address.
	DefaultMulticastIP = "239.255.42.98"
	// DefaultMulticastPort is used when the caller doesn't override it.
	DefaultMulticastPort = 50692

	// sendQueueCap and recvQueueCap are the bounded discovery channels
	// spec.md §5 names (capacity 1024).
	sendQueueCap = 1024
	recvQueueCap = 1024
)

// DefaultGroup returns the default IPv4 multicast group and port.
func DefaultGroup() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(DefaultMulticastIP), Port: DefaultMulticastPort}
}

// listenReusable binds a UDP socket on port with SO_REUSEADDR set before
// bind, so multiple local processes (or a quick restart) can share the
// discovery port — the "enable address reuse" requirement of spec.md
// §4.3. golang.org/x/net/ipv4 (below) has no portable way to set this
// itself, so it goes through net.ListenConfig's socket-level Control
// hook, the standard library's own escape hatch for this exact case.
func listenReusable(port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// multicastInterface picks the first interface that's up and supports
// multicast, for joining the discovery group. OS default TTL/interface
// selection otherwise applies, per spec.md §6.
func multicastInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		return iface, nil
	}
	return nil, fmt.Errorf("discovery: no multicast-capable interface found")
}

// Received pairs a decoded DiscoveryEvent with the address it arrived
// from (spec.md §4.3: "an outbound channel (discovery -> manager)
// carrying (DiscoveryEvent, source SocketAddress) pairs").
type Received struct {
	Event  proto.DiscoveryEvent
	Source *net.UDPAddr
}

// Service owns the multicast socket and the two channels bridging it to
// the application (here, the peer manager).
type Service struct {
	conn  *net.UDPConn
	group *net.UDPAddr
	dedup uint32

	send chan proto.DiscoveryEvent
	recv chan Received

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup

	log *logrus.Entry
}

// Listen joins the multicast group and starts the service's main loop.
// dedup is the per-process nonce (shared with the owning Manager) used
// to recognize and drop the service's own multicast echoes.
func Listen(group *net.UDPAddr, dedup uint32, logger *logrus.Entry) (*Service, error) {
	conn, err := listenReusable(group.Port)
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	iface, err := multicastInterface()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, err
	}
	// Multicast loopback lets two processes on the same host exchange
	// presence frames, which is how the end-to-end scenarios in spec.md
	// §8 are meant to run locally.
	if err := pc.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Service{
		conn:   conn,
		group:  group,
		dedup:  dedup,
		send:   make(chan proto.DiscoveryEvent, sendQueueCap),
		recv:   make(chan Received, recvQueueCap),
		closed: make(chan struct{}),
		log:    logger,
	}

	raw := make(chan Received, recvQueueCap)
	s.wg.Add(2)
	go s.readLoop(raw)
	go s.run(raw)
	return s, nil
}

// Send returns the inbound channel (application -> discovery) for
// outgoing DiscoveryEvents to transmit on the multicast group.
func (s *Service) Send() chan<- proto.DiscoveryEvent { return s.send }

// Events returns the outbound channel (discovery -> manager) of frames
// received from the network, already filtered for self-echoes.
func (s *Service) Events() <-chan Received { return s.recv }

// Close drains no further sends, stops the loops, and closes the socket.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}

// readLoop continuously reads datagrams off the socket and decodes them,
// feeding raw so run's select can multiplex it against outgoing sends.
// This dedicated goroutine is this repo's translation of the original's
// non-blocking async socket read into Go's blocking-IO-plus-channel
// model: run() never blocks in a socket read itself.
func (s *Service) readLoop(raw chan<- Received) {
	defer s.wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
				s.log.WithError(err).Debug("discovery read failed")
				return
			}
		}
		ev, err := proto.DecodeDiscovery(buf[:n])
		if err != nil {
			s.log.WithError(err).WithField("source", addr).Debug("dropping malformed discovery frame")
			continue
		}
		select {
		case raw <- Received{Event: ev, Source: addr}:
		case <-s.closed:
			return
		}
	}
}

// run multiplexes outgoing sends against incoming frames, applying
// self-echo suppression before forwarding to the manager-facing channel.
func (s *Service) run(raw <-chan Received) {
	defer s.wg.Done()
	for {
		select {
		case <-s.closed:
			return
		case ev := <-s.send:
			s.transmit(ev)
		case r := <-raw:
			if s.isSelfEcho(r.Event) {
				continue
			}
			select {
			case s.recv <- r:
			case <-s.closed:
				return
			}
		}
	}
}

// isSelfEcho implements spec.md §4.3's self-echo suppression: a
// PresenceRequest whose dedup matches ours is dropped unconditionally.
// This is the nonce-based replacement for the source's fragile
// "just_send_request" boolean flag (spec.md §9).
func (s *Service) isSelfEcho(ev proto.DiscoveryEvent) bool {
	req, ok := ev.(proto.PresenceRequest)
	return ok && req.Dedup == s.dedup
}

func (s *Service) transmit(ev proto.DiscoveryEvent) {
	frame, err := proto.EncodeDiscovery(ev)
	if err != nil {
		s.log.WithError(err).Warn("failed to encode outgoing discovery frame")
		return
	}
	if _, err := s.conn.WriteToUDP(frame, s.group); err != nil {
		s.log.WithError(err).Warn("failed to transmit discovery frame")
	}
}
