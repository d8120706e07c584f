// Package peer defines the data model shared by discovery, the peer
// manager and the handshake: peer identity, metadata and the candidates
// the manager tracks before a connection exists.
package peer

import (
	"net"
	"sort"

	"github.com/lanhop/core/pairing"
)

// Id is an opaque, globally unique peer identifier. It is comparable and
// hashable (a plain string underneath), and its Bytes form is what goes
// into the handshake's HMAC input and onto the wire.
type Id string

// Bytes returns the raw bytes of the id, suitable as HMAC input or wire
// payload.
func (id Id) Bytes() []byte { return []byte(id) }

func (id Id) String() string { return string(id) }

// FromBytes rebuilds an Id from raw bytes read off the wire.
func FromBytes(b []byte) Id { return Id(b) }

// DeviceType classifies the kind of device a peer is running on. It is
// informational only; nothing in the core branches on it besides display.
type DeviceType uint8

const (
	DeviceUnknown DeviceType = iota
	DeviceDesktop
	DeviceMobile
)

func (t DeviceType) String() string {
	switch t {
	case DeviceDesktop:
		return "desktop"
	case DeviceMobile:
		return "mobile"
	default:
		return "unknown"
	}
}

// Metadata is the information a peer announces about itself over
// discovery (PresenceResponse). The handshake carries only the peer id.
type Metadata struct {
	ID   Id
	Type DeviceType
	Name string
	Addr *net.TCPAddr
}

// Candidate is a peer the manager knows about (via pairing or discovery)
// but has not necessarily connected to: its metadata, the set of
// addresses it has been observed at, and the authenticator used to prove
// the handshake.
type Candidate struct {
	ID       Id
	Metadata Metadata
	Addrs    map[string]*net.TCPAddr
	Auth     *pairing.Authenticator
}

// NewCandidate builds a Candidate for a freshly paired or discovered peer.
func NewCandidate(meta Metadata, auth *pairing.Authenticator) *Candidate {
	return &Candidate{
		ID:       meta.ID,
		Metadata: meta,
		Addrs:    make(map[string]*net.TCPAddr),
		Auth:     auth,
	}
}

// AddAddr records addr as a place this candidate has been observed, set
// semantics by dialable address string.
func (c *Candidate) AddAddr(addr *net.TCPAddr) {
	if addr == nil {
		return
	}
	c.Addrs[addr.String()] = addr
}

// AddrList returns the candidate's known addresses as a slice, for code
// that needs to iterate dial attempts in a stable order.
func (c *Candidate) AddrList() []*net.TCPAddr {
	keys := make([]string, 0, len(c.Addrs))
	for k := range c.Addrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*net.TCPAddr, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.Addrs[k])
	}
	return out
}

// Clone returns a snapshot copy of c, safe to hand to code outside the
// manager's single-writer loop without risking later mutation races.
func (c *Candidate) Clone() *Candidate {
	cp := &Candidate{
		ID:       c.ID,
		Metadata: c.Metadata,
		Addrs:    make(map[string]*net.TCPAddr, len(c.Addrs)),
		Auth:     c.Auth,
	}
	for k, v := range c.Addrs {
		cp.Addrs[k] = v
	}
	return cp
}
