package peer

import (
	"net"
	"testing"

	"github.com/lanhop/core/pairing"
)

func TestIdBytesRoundTrip(t *testing.T) {
	id := Id("peer-42")
	if got := FromBytes(id.Bytes()); got != id {
		t.Fatalf("round trip mismatch: got %q want %q", got, id)
	}
}

func TestDeviceTypeString(t *testing.T) {
	cases := map[DeviceType]string{
		DeviceUnknown: "unknown",
		DeviceDesktop: "desktop",
		DeviceMobile:  "mobile",
	}
	for dt, want := range cases {
		if got := dt.String(); got != want {
			t.Errorf("DeviceType(%d).String() = %q, want %q", dt, got, want)
		}
	}
}

func TestCandidateAddrSet(t *testing.T) {
	auth := pairing.New([]byte("secret"))
	c := NewCandidate(Metadata{ID: "p1", Name: "laptop"}, auth)
	addr1 := &net.TCPAddr{IP: net.ParseIP("192.168.1.5"), Port: 9000}
	addr2 := &net.TCPAddr{IP: net.ParseIP("192.168.1.5"), Port: 9000}

	c.AddAddr(addr1)
	c.AddAddr(addr2)
	if len(c.Addrs) != 1 {
		t.Fatalf("expected duplicate addresses to collapse, got %d entries", len(c.Addrs))
	}

	addr3 := &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 9000}
	c.AddAddr(addr3)
	if len(c.AddrList()) != 2 {
		t.Fatalf("expected 2 distinct addresses, got %d", len(c.AddrList()))
	}
}

func TestCandidateCloneIsIndependent(t *testing.T) {
	auth := pairing.New([]byte("secret"))
	c := NewCandidate(Metadata{ID: "p1"}, auth)
	c.AddAddr(&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1})

	clone := c.Clone()
	clone.AddAddr(&net.TCPAddr{IP: net.ParseIP("10.0.0.2"), Port: 2})

	if len(c.Addrs) != 1 {
		t.Fatalf("mutating the clone affected the original: %d addrs", len(c.Addrs))
	}
}
