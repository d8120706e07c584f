package p2p

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/lanhop/core/p2perr"
	"github.com/lanhop/core/pairing"
	"github.com/lanhop/core/peer"
	"github.com/lanhop/core/proto"
)

// Three-round-trip mutual handshake, client and server roles, grounded on
// spec.md §4.5. A 1-second timeout bounds every receive; on timeout the
// side that was waiting sends Failure(TIMEOUT) before giving up.

var (
	errStepTimeout    = errors.New("handshake: step timed out")
	errStepDisconnect = errors.New("handshake: peer closed the stream")
	errStepCodec      = errors.New("handshake: malformed frame")
)

// readStep reads one handshake frame, bounding the wait to
// handshakeStepTimeout and classifying the failure mode.
func readStep(conn net.Conn) (proto.Connection, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeStepTimeout))
	defer conn.SetReadDeadline(time.Time{})

	msg, err := proto.ReadConnection(conn)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, errStepTimeout
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errStepDisconnect
		}
		return nil, errStepCodec
	}
	return msg, nil
}

// failStep turns a readStep error into the ConnError the handshake
// function should return, sending a Failure(TIMEOUT) frame first when
// the step timed out (spec.md §4.5: "On any timeout, send
// Failure(TIMEOUT) and return Timeout").
func failStep(conn net.Conn, err error) error {
	switch err {
	case errStepTimeout:
		sendFailure(conn, p2perr.CodeTimeout)
		return p2perr.ErrTimeout
	case errStepDisconnect:
		return p2perr.ErrDisconnect
	default:
		return p2perr.ErrCodec
	}
}

func sendFailure(conn net.Conn, code uint32) {
	conn.SetWriteDeadline(time.Now().Add(handshakeStepTimeout))
	_ = proto.WriteConnection(conn, proto.Failure{Code: code})
	conn.SetWriteDeadline(time.Time{})
}

// unexpected classifies a Connection value that wasn't the message type
// a handshake step expected: a Failure frame is surfaced verbatim, any
// other message is a protocol violation (spec.md: "return Msg").
func unexpected(msg proto.Connection) error {
	if f, ok := msg.(proto.Failure); ok {
		return p2perr.Failure(f.Code)
	}
	return p2perr.ErrMsg
}

// connectHandshake runs the client-role handshake (spec.md §4.5 "Client
// role") against an already-dialed connection.
func connectHandshake(m *Manager, conn net.Conn, cand *peer.Candidate) (*Peer, error) {
	localID := m.self.ID

	code, err := cand.Auth.Generate()
	if err != nil {
		return nil, p2perr.ErrAuth
	}
	key := []byte(code)
	tag := pairing.Sign(key, localID.Bytes())

	if err := proto.WriteConnection(conn, proto.Request{ID: localID, Tag: tag}); err != nil {
		return nil, p2perr.ErrDisconnect
	}

	msg, err := readStep(conn)
	if err != nil {
		return nil, failStep(conn, err)
	}
	resp, ok := msg.(proto.Response)
	if !ok {
		return nil, unexpected(msg)
	}
	if err := pairing.Verify(key, cand.ID.Bytes(), resp.Tag); err != nil {
		sendFailure(conn, p2perr.CodeAuth)
		return nil, p2perr.ErrAuth
	}

	if err := proto.WriteConnection(conn, proto.CompleteRequest{}); err != nil {
		return nil, p2perr.ErrDisconnect
	}
	msg, err = readStep(conn)
	if err != nil {
		return nil, failStep(conn, err)
	}
	if _, ok := msg.(proto.CompleteResponse); !ok {
		return nil, unexpected(msg)
	}

	return newPeer(m, conn, cand.ID, cand.Metadata, RoleClient), nil
}

// acceptHandshake runs the server-role handshake (spec.md §4.5 "Server
// role") against a freshly accepted connection, authenticating the
// remote side against the manager's known/discovered registries.
func acceptHandshake(m *Manager, conn net.Conn) (*Peer, error) {
	msg, err := readStep(conn)
	if err != nil {
		return nil, failStep(conn, err)
	}
	req, ok := msg.(proto.Request)
	if !ok {
		return nil, unexpected(msg)
	}

	cand := m.getPeerCandidate(req.ID)
	if cand == nil {
		sendFailure(conn, p2perr.CodeNotFound)
		return nil, p2perr.ErrNotFound
	}

	code, err := cand.Auth.Generate()
	if err != nil {
		sendFailure(conn, p2perr.CodeAuth)
		return nil, p2perr.ErrAuth
	}
	key := []byte(code)
	if err := pairing.Verify(key, cand.ID.Bytes(), req.Tag); err != nil {
		sendFailure(conn, p2perr.CodeAuth)
		return nil, p2perr.ErrAuth
	}

	tag := pairing.Sign(key, m.self.ID.Bytes())
	if err := proto.WriteConnection(conn, proto.Response{Tag: tag}); err != nil {
		return nil, p2perr.ErrDisconnect
	}

	msg, err = readStep(conn)
	if err != nil {
		return nil, failStep(conn, err)
	}
	if _, ok := msg.(proto.CompleteRequest); !ok {
		return nil, unexpected(msg)
	}

	if err := proto.WriteConnection(conn, proto.CompleteResponse{}); err != nil {
		return nil, p2perr.ErrDisconnect
	}

	return newPeer(m, conn, cand.ID, cand.Metadata, RoleServer), nil
}
