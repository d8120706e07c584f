package lanhop

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/lanhop/core/pairing"
	"github.com/lanhop/core/peer"
)

// QRPayload is the data exchanged out of band (by QR code, per spec.md
// §1) to pair two nodes: a freshly minted shared secret plus the
// advertising peer's own metadata. Grounded on node.rs's QrPayload,
// which serde_json-encodes the same two fields.
type QRPayload struct {
	Secret string        `json:"secret"`
	Peer   peer.Metadata `json:"peer"`
}

// NewSharableQRPayload builds the payload this node shows to a peer that
// wants to pair with it. If secret is empty a fresh one is minted (first
// stage of pairing); a second device completing the pairing echoes the
// secret it was shown (node.rs's handle_query GetSharableQrCode).
func (n *Node) NewSharableQRPayload(secret string) ([]byte, error) {
	if secret == "" {
		s, err := randomSecret()
		if err != nil {
			return nil, err
		}
		secret = s
	}
	return json.Marshal(QRPayload{Secret: secret, Peer: n.mgr.GetMetadata()})
}

// Pair consumes a QRPayload (scanned from, or shown by, a peer) and
// records it as a known peer, persisting the updated known-peers set.
// Grounded on node.rs's handle_command Pair arm.
func (n *Node) Pair(qrJSON []byte) error {
	var payload QRPayload
	if err := json.Unmarshal(qrJSON, &payload); err != nil {
		return fmt.Errorf("lanhop: decoding pairing payload: %w", err)
	}

	auth := pairing.New([]byte(payload.Secret))
	cand := peer.NewCandidate(payload.Peer, auth)

	n.mu.Lock()
	n.known[cand.ID] = cand
	known := make([]*peer.Candidate, 0, len(n.known))
	for _, c := range n.known {
		known = append(known, c)
	}
	n.mu.Unlock()

	if n.store != nil {
		if err := n.store.SetKnownPeers(known); err != nil {
			return fmt.Errorf("lanhop: persisting known peers: %w", err)
		}
	}

	n.mgr.AddKnownPeer(cand)
	return nil
}

// RandomSecret mints a fresh pairing secret suitable for a first-stage
// QRPayload, for callers that need one before a Node exists.
func RandomSecret() (string, error) {
	return randomSecret()
}

func randomSecret() (string, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
