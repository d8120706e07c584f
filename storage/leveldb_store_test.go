package storage

import (
	"testing"

	"github.com/lanhop/core/pairing"
	"github.com/lanhop/core/peer"
)

func openTemp(t *testing.T) *LevelDBStore {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConfigRoundTrip(t *testing.T) {
	s := openTemp(t)

	if cfg, err := s.GetConfig(); err != nil || cfg != nil {
		t.Fatalf("expected no config yet, got %#v, err %v", cfg, err)
	}

	want := &NodeConfig{Name: "desk", ID: peer.Id("abc123"), AutoAccept: true}
	if err := s.SetConfig(want); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	got, err := s.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got.Name != want.Name || got.ID != want.ID || got.AutoAccept != want.AutoAccept {
		t.Fatalf("round trip mismatch: got %#v want %#v", got, want)
	}
}

func TestKnownPeersRoundTrip(t *testing.T) {
	s := openTemp(t)

	if peers, err := s.GetKnownPeers(); err != nil || peers != nil {
		t.Fatalf("expected no known peers yet, got %#v, err %v", peers, err)
	}

	auth := pairing.New([]byte("shared-secret"))
	cand := peer.NewCandidate(peer.Metadata{
		ID:   peer.Id("peer-1"),
		Type: peer.DeviceMobile,
		Name: "phone",
	}, auth)

	if err := s.SetKnownPeers([]*peer.Candidate{cand}); err != nil {
		t.Fatalf("SetKnownPeers: %v", err)
	}

	got, err := s.GetKnownPeers()
	if err != nil {
		t.Fatalf("GetKnownPeers: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 known peer, got %d", len(got))
	}
	if got[0].ID != cand.ID || got[0].Metadata.Name != cand.Metadata.Name {
		t.Fatalf("mismatch: got %#v want %#v", got[0], cand)
	}
	if string(got[0].Auth.Secret()) != "shared-secret" {
		t.Fatalf("secret not preserved: got %q", got[0].Auth.Secret())
	}
}
