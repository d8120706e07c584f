package proto

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lanhop/core/peer"
)

// ErrShortFrame is returned when a length prefix promises more bytes than
// the transport could ever deliver in one frame (a sanity bound, not the
// transport-level "wait for more" case, which io.ReadFull subsumes by
// blocking until the full frame arrives or the stream closes).
var ErrShortFrame = errors.New("proto: frame too large")

// maxFrameLen bounds a single frame's payload so a corrupt or hostile
// length prefix can't make a decoder allocate unbounded memory.
const maxFrameLen = 1 << 20

// writeFrame writes a length-prefixed frame: a 4-byte BE length followed
// by payload.
func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads a length-prefixed frame and returns its payload bytes.
// A stream closed exactly at a frame boundary yields io.EOF; a stream
// closed mid-frame yields io.ErrUnexpectedEOF — both are reported to
// callers as disconnects. This blocking read is the equivalent of the
// non-blocking decoder's "wait for more" recoverable case: it simply
// parks until enough bytes have arrived or the connection is gone.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, ErrShortFrame
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// bufReader is satisfied by both *bufio.Reader and anything wrapping one;
// readFrame only needs io.Reader, but callers are expected to wrap raw
// net.Conn values in a *bufio.Reader for efficient small reads.
type bufReader = *bufio.Reader

func putUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func putString(buf []byte, s string) []byte {
	return putBytes(buf, []byte(s))
}

func takeUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}

func takeBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := takeUint32(b)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < n {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return rest[:n], rest[n:], nil
}

func takeString(b []byte) (string, []byte, error) {
	raw, rest, err := takeBytes(b)
	if err != nil {
		return "", nil, err
	}
	return string(raw), rest, nil
}

func putAddr(buf []byte, addr *net.TCPAddr) []byte {
	if addr == nil {
		buf = putBytes(buf, nil)
		return putUint32(buf, 0)
	}
	buf = putBytes(buf, addr.IP.To16())
	return putUint32(buf, uint32(addr.Port))
}

func takeAddr(b []byte) (*net.TCPAddr, []byte, error) {
	ipBytes, rest, err := takeBytes(b)
	if err != nil {
		return nil, nil, err
	}
	port, rest, err := takeUint32(rest)
	if err != nil {
		return nil, nil, err
	}
	if len(ipBytes) == 0 {
		return nil, rest, nil
	}
	return &net.TCPAddr{IP: net.IP(ipBytes), Port: int(port)}, rest, nil
}

func putMetadata(buf []byte, m peer.Metadata) []byte {
	buf = putBytes(buf, m.ID.Bytes())
	buf = append(buf, byte(m.Type))
	buf = putString(buf, m.Name)
	buf = putAddr(buf, m.Addr)
	return buf
}

func takeMetadata(b []byte) (peer.Metadata, []byte, error) {
	var m peer.Metadata
	idBytes, rest, err := takeBytes(b)
	if err != nil {
		return m, nil, err
	}
	m.ID = peer.FromBytes(idBytes)
	if len(rest) < 1 {
		return m, nil, io.ErrUnexpectedEOF
	}
	m.Type = peer.DeviceType(rest[0])
	rest = rest[1:]
	m.Name, rest, err = takeString(rest)
	if err != nil {
		return m, nil, err
	}
	m.Addr, rest, err = takeAddr(rest)
	if err != nil {
		return m, nil, err
	}
	return m, rest, nil
}

func errBadFrame(tag byte) error {
	return fmt.Errorf("proto: unknown frame discriminant 0x%02x", tag)
}
