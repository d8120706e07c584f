package p2p

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lanhop/core/log"
	"github.com/lanhop/core/p2perr"
	"github.com/lanhop/core/pairing"
	"github.com/lanhop/core/peer"
)

func startTestManager(t *testing.T, name string, port int) *Manager {
	t.Helper()
	mgr, err := Start(Config{
		ID:             peer.Id(name),
		Name:           name,
		Device:         peer.DeviceDesktop,
		ListenIP:       net.ParseIP("127.0.0.1"),
		MulticastGroup: &net.UDPAddr{IP: net.ParseIP("239.255.42.98"), Port: port},
		Logger:         log.New(name),
	})
	if err != nil {
		t.Fatalf("Start(%s): %v", name, err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func pairCandidates(a, b *Manager, secret []byte) {
	a.AddKnownPeer(peer.NewCandidate(b.GetMetadata(), pairing.New(secret)))
	b.AddKnownPeer(peer.NewCandidate(a.GetMetadata(), pairing.New(secret)))
}

func waitDiscovered(t *testing.T, m *Manager, id peer.Id) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if m.IsDiscovered(id) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s never discovered %s", m.self.ID, id)
}

// S1/S3-style: a known peer answering a presence request is surfaced as
// discovered to the node that asked; the node that only answered has
// discovered nothing.
func TestHandlePeerDiscoveredRequiresKnownPeer(t *testing.T) {
	a := startTestManager(t, "s1-a", 54501)
	b := startTestManager(t, "s1-b", 54501)
	pairCandidates(a, b, []byte("secret"))

	b.RequestPresence()
	waitDiscovered(t, b, "s1-a")
	if a.IsDiscovered("s1-b") {
		t.Fatal("a should not yet have discovered b (a hasn't requested presence)")
	}
}

// S2/S4-style: connecting to an unknown (never-discovered) peer id fails
// with NotFound, and a duplicate connect to an already-connected peer
// fails with Duplicate.
func TestConnectToPeerNotFoundAndDuplicate(t *testing.T) {
	a := startTestManager(t, "s2-a", 54502)
	b := startTestManager(t, "s2-b", 54502)
	pairCandidates(a, b, []byte("secret"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := a.ConnectToPeer(ctx, "nonexistent"); err != p2perr.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	b.RequestPresence()
	waitDiscovered(t, b, "s2-a")
	a.RequestPresence()
	waitDiscovered(t, a, "s2-b")

	if _, err := a.ConnectToPeer(ctx, "s2-b"); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if !a.IsConnected("s2-b") {
		t.Fatal("expected a to be connected to b")
	}

	if _, err := a.ConnectToPeer(ctx, "s2-b"); err != p2perr.ErrDuplicate {
		t.Fatalf("expected ErrDuplicate on second connect, got %v", err)
	}
}

// S5-style (peer manager half): after the handshake both sides see a
// PeerConnected event and disconnecting one side surfaces
// PeerDisconnected on the other.
func TestConnectAndDisconnectEvents(t *testing.T) {
	a := startTestManager(t, "s5-a", 54503)
	b := startTestManager(t, "s5-b", 54503)
	pairCandidates(a, b, []byte("secret"))

	b.RequestPresence()
	waitDiscovered(t, b, "s5-a")
	a.RequestPresence()
	waitDiscovered(t, a, "s5-b")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := a.ConnectToPeer(ctx, "s5-b")
	if err != nil {
		t.Fatalf("ConnectToPeer: %v", err)
	}

	connectedOnB := waitForPeerConnected(t, b)
	if connectedOnB.ID != "s5-a" {
		t.Fatalf("expected PeerConnected for s5-a on b, got %s", connectedOnB.ID)
	}

	p.Close()

	waitForPeerDisconnected(t, b, "s5-a")
}

func waitForPeerConnected(t *testing.T, m *Manager) *Peer {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if pc, ok := ev.(PeerConnected); ok {
				return pc.Peer
			}
		case <-deadline:
			t.Fatal("timed out waiting for PeerConnected")
		}
	}
}

func waitForPeerDisconnected(t *testing.T, m *Manager, id peer.Id) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if pd, ok := ev.(PeerDisconnected); ok && pd.ID == id {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for PeerDisconnected")
		}
	}
}
