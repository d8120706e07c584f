package proto

import (
	"bytes"
	"net"
	"testing"

	"github.com/lanhop/core/peer"
)

func TestDiscoveryRoundTrip(t *testing.T) {
	cases := []DiscoveryEvent{
		PresenceRequest{Dedup: 0xDEADBEEF},
		PresenceResponse{Metadata: peer.Metadata{
			ID:   peer.Id("node-a"),
			Type: peer.DeviceDesktop,
			Name: "A's Laptop",
			Addr: &net.TCPAddr{IP: net.ParseIP("192.168.1.10"), Port: 50700},
		}},
		PresenceResponse{Metadata: peer.Metadata{ID: peer.Id("no-addr")}},
	}
	for _, want := range cases {
		frame, err := EncodeDiscovery(want)
		if err != nil {
			t.Fatalf("EncodeDiscovery(%#v): %v", want, err)
		}
		got, err := DecodeDiscovery(frame)
		if err != nil {
			t.Fatalf("DecodeDiscovery: %v", err)
		}
		assertDiscoveryEqual(t, want, got)
	}
}

func assertDiscoveryEqual(t *testing.T, want, got DiscoveryEvent) {
	t.Helper()
	switch w := want.(type) {
	case PresenceRequest:
		g, ok := got.(PresenceRequest)
		if !ok || g.Dedup != w.Dedup {
			t.Fatalf("PresenceRequest mismatch: want %+v got %+v", w, got)
		}
	case PresenceResponse:
		g, ok := got.(PresenceResponse)
		if !ok {
			t.Fatalf("expected PresenceResponse, got %#v", got)
		}
		if g.Metadata.ID != w.Metadata.ID || g.Metadata.Name != w.Metadata.Name || g.Metadata.Type != w.Metadata.Type {
			t.Fatalf("metadata mismatch: want %+v got %+v", w.Metadata, g.Metadata)
		}
		if (w.Metadata.Addr == nil) != (g.Metadata.Addr == nil) {
			t.Fatalf("addr presence mismatch: want %v got %v", w.Metadata.Addr, g.Metadata.Addr)
		}
		if w.Metadata.Addr != nil && g.Metadata.Addr.String() != w.Metadata.Addr.String() {
			t.Fatalf("addr mismatch: want %v got %v", w.Metadata.Addr, g.Metadata.Addr)
		}
	}
}

func TestConnectionRoundTrip(t *testing.T) {
	cases := []Connection{
		Request{ID: peer.Id("peer-1"), Tag: []byte{1, 2, 3, 4}},
		Response{Tag: []byte{5, 6, 7}},
		CompleteRequest{},
		CompleteResponse{},
		Failure{Code: 2003},
	}
	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteConnection(&buf, want); err != nil {
			t.Fatalf("WriteConnection(%#v): %v", want, err)
		}
		got, err := ReadConnection(&buf)
		if err != nil {
			t.Fatalf("ReadConnection: %v", err)
		}
		assertConnectionEqual(t, want, got)
	}
}

func assertConnectionEqual(t *testing.T, want, got Connection) {
	t.Helper()
	switch w := want.(type) {
	case Request:
		g, ok := got.(Request)
		if !ok || g.ID != w.ID || !bytes.Equal(g.Tag, w.Tag) {
			t.Fatalf("Request mismatch: want %+v got %+v", w, got)
		}
	case Response:
		g, ok := got.(Response)
		if !ok || !bytes.Equal(g.Tag, w.Tag) {
			t.Fatalf("Response mismatch: want %+v got %+v", w, got)
		}
	case CompleteRequest:
		if _, ok := got.(CompleteRequest); !ok {
			t.Fatalf("expected CompleteRequest, got %#v", got)
		}
	case CompleteResponse:
		if _, ok := got.(CompleteResponse); !ok {
			t.Fatalf("expected CompleteResponse, got %#v", got)
		}
	case Failure:
		g, ok := got.(Failure)
		if !ok || g.Code != w.Code {
			t.Fatalf("Failure mismatch: want %+v got %+v", w, got)
		}
	}
}

func TestSessionRoundTrip(t *testing.T) {
	cases := []Session{
		{ID: 1, Ctl: CtlRequest{Method: "LaunchUri", Payload: []byte("https://example.com")}},
		{ID: 2, Ctl: CtlResponse{Status: CtlSuccess}},
		{ID: 3, Ctl: CtlResponse{Status: CtlError, Code: 7}},
	}
	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteSession(&buf, want); err != nil {
			t.Fatalf("WriteSession(%#v): %v", want, err)
		}
		got, err := ReadSession(&buf)
		if err != nil {
			t.Fatalf("ReadSession: %v", err)
		}
		if got.ID != want.ID {
			t.Fatalf("id mismatch: want %d got %d", want.ID, got.ID)
		}
		switch w := want.Ctl.(type) {
		case CtlRequest:
			g, ok := got.Ctl.(CtlRequest)
			if !ok || g.Method != w.Method || !bytes.Equal(g.Payload, w.Payload) {
				t.Fatalf("CtlRequest mismatch: want %+v got %+v", w, got.Ctl)
			}
		case CtlResponse:
			g, ok := got.Ctl.(CtlResponse)
			if !ok || g.Status != w.Status || g.Code != w.Code {
				t.Fatalf("CtlResponse mismatch: want %+v got %+v", w, got.Ctl)
			}
		}
	}
}

func TestReadConnectionOnClosedStream(t *testing.T) {
	r, w := net.Pipe()
	w.Close()
	if _, err := ReadConnection(r); err == nil {
		t.Fatal("expected an error reading from a closed stream")
	}
}

func TestDecodeDiscoveryRejectsUnknownTag(t *testing.T) {
	frame, _ := EncodeDiscovery(PresenceRequest{Dedup: 1})
	frame[4] = 0x77 // corrupt the discriminant byte just past the length prefix
	if _, err := DecodeDiscovery(frame); err == nil {
		t.Fatal("expected an error for an unknown discriminant")
	}
}
