package p2p

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lanhop/core/p2perr"
	"github.com/lanhop/core/pairing"
	"github.com/lanhop/core/peer"
	"github.com/lanhop/core/proto"
)

// dialAccept dials srv's listen address and returns the client side of
// the raw TCP connection, leaving the handshake itself to the caller.
func dialAccept(t *testing.T, srv *Manager) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.self.Addr.String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestAcceptHandshakeRejectsUnknownPeer(t *testing.T) {
	srv := startTestManager(t, "hs-unknown-srv", 54511)

	conn := dialAccept(t, srv)
	defer conn.Close()

	tag := pairing.Sign([]byte("000000"), peer.Id("ghost").Bytes())
	if err := proto.WriteConnection(conn, proto.Request{ID: "ghost", Tag: tag}); err != nil {
		t.Fatalf("WriteConnection: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := proto.ReadConnection(conn)
	if err != nil {
		t.Fatalf("ReadConnection: %v", err)
	}
	fail, ok := msg.(proto.Failure)
	if !ok || fail.Code != p2perr.CodeNotFound {
		t.Fatalf("expected Failure(NOT_FOUND), got %#v", msg)
	}
}

func TestAcceptHandshakeRejectsBadTag(t *testing.T) {
	srv := startTestManager(t, "hs-badtag-srv", 54512)
	client := startTestManager(t, "hs-badtag-cli", 54512)
	pairCandidates(srv, client, []byte("real-secret"))

	client.RequestPresence()
	waitDiscovered(t, client, "hs-badtag-srv")
	srv.RequestPresence()
	waitDiscovered(t, srv, "hs-badtag-cli")

	conn := dialAccept(t, srv)
	defer conn.Close()

	badTag := pairing.Sign([]byte("wrong-key"), peer.Id("hs-badtag-cli").Bytes())
	if err := proto.WriteConnection(conn, proto.Request{ID: "hs-badtag-cli", Tag: badTag}); err != nil {
		t.Fatalf("WriteConnection: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := proto.ReadConnection(conn)
	if err != nil {
		t.Fatalf("ReadConnection: %v", err)
	}
	fail, ok := msg.(proto.Failure)
	if !ok || fail.Code != p2perr.CodeAuth {
		t.Fatalf("expected Failure(AUTH), got %#v", msg)
	}
}

func TestAcceptHandshakeTimesOutWaitingForRequest(t *testing.T) {
	srv := startTestManager(t, "hs-timeout-srv", 54513)

	conn := dialAccept(t, srv)
	defer conn.Close()

	// Send nothing; the server side must time out after ~1s and reply
	// with Failure(TIMEOUT) before closing its side of the handshake.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	msg, err := proto.ReadConnection(conn)
	if err != nil {
		t.Fatalf("ReadConnection: %v", err)
	}
	fail, ok := msg.(proto.Failure)
	if !ok || fail.Code != p2perr.CodeTimeout {
		t.Fatalf("expected Failure(TIMEOUT), got %#v", msg)
	}
}

func TestClientConnectHandshakeSucceeds(t *testing.T) {
	a := startTestManager(t, "hs-ok-a", 54514)
	b := startTestManager(t, "hs-ok-b", 54514)
	pairCandidates(a, b, []byte("shared"))

	b.RequestPresence()
	waitDiscovered(t, b, "hs-ok-a")
	a.RequestPresence()
	waitDiscovered(t, a, "hs-ok-b")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := a.ConnectToPeer(ctx, "hs-ok-b")
	if err != nil {
		t.Fatalf("ConnectToPeer: %v", err)
	}
	if p.Role != RoleClient {
		t.Fatalf("expected RoleClient, got %v", p.Role)
	}
	if p.ID != "hs-ok-b" {
		t.Fatalf("expected peer id hs-ok-b, got %s", p.ID)
	}
}
