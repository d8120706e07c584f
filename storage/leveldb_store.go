// Package storage gives the core's external persistence interface (see
// lanhop.ConfigStore) a concrete adapter: a LevelDB-backed store for the
// node's own configuration and its set of known peers. Neither the core
// subsystems in p2p/discovery nor their tests depend on this package —
// spec.md §1 keeps persistence an external collaborator — but
// cmd/lanhopd wires it in so the demo binary survives a restart.
package storage

import (
	"github.com/drep-project/binary"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/lanhop/core/pairing"
	"github.com/lanhop/core/peer"
)

var (
	configKey = []byte("config")
	peersKey  = []byte("known_peers")
)

// NodeConfig mirrors the shape original_source/lib/core/src/conf.rs's
// NodeConfig carries: this node's name/id, its auto-accept policy, and
// (unlike the Rust original, which keeps known_peers inline) a separate
// known-peers record for simpler incremental updates.
type NodeConfig struct {
	Name       string
	ID         peer.Id
	AutoAccept bool
}

// knownPeerRecord is the on-disk shape of a peer.Candidate: its id,
// device type, name and pairing secret. Addresses are not stored.
type knownPeerRecord struct {
	ID     string
	Type   uint8
	Name   string
	Secret []byte
}

// LevelDBStore persists NodeConfig and the known-peers set to a local
// LevelDB database, grounded on the teacher's database/db.go leveldb
// wrapper, using github.com/drep-project/binary for record encoding in
// place of the teacher's trie-integrated journal/transaction machinery
// (which is specific to blockchain state and has no home here).
type LevelDBStore struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a LevelDB database at path.
func Open(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

// GetConfig reads the stored NodeConfig, or (nil, nil) if none exists yet.
func (s *LevelDBStore) GetConfig() (*NodeConfig, error) {
	raw, err := s.db.Get(configKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg NodeConfig
	if err := binary.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetConfig persists cfg, overwriting any previous value.
func (s *LevelDBStore) SetConfig(cfg *NodeConfig) error {
	raw, err := binary.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.db.Put(configKey, raw, nil)
}

// GetKnownPeers reads every persisted peer candidate's metadata and
// pairing secret, reconstructing peer.Candidate values with an empty
// address set (addresses are re-learned via discovery, not persisted —
// spec.md's Non-goals exclude "multi-homed address prioritization" and
// the original likewise treats addrs as runtime-only state).
func (s *LevelDBStore) GetKnownPeers() ([]*peer.Candidate, error) {
	raw, err := s.db.Get(peersKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []knownPeerRecord
	if err := binary.Unmarshal(raw, &records); err != nil {
		return nil, err
	}

	out := make([]*peer.Candidate, 0, len(records))
	for _, r := range records {
		meta := peer.Metadata{
			ID:   peer.Id(r.ID),
			Type: peer.DeviceType(r.Type),
			Name: r.Name,
		}
		out = append(out, peer.NewCandidate(meta, pairing.New(r.Secret)))
	}
	return out, nil
}

// SetKnownPeers overwrites the persisted known-peers set.
func (s *LevelDBStore) SetKnownPeers(candidates []*peer.Candidate) error {
	records := make([]knownPeerRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, knownPeerRecord{
			ID:     string(c.ID),
			Type:   uint8(c.Metadata.Type),
			Name:   c.Metadata.Name,
			Secret: c.Auth.Secret(),
		})
	}
	raw, err := binary.Marshal(records)
	if err != nil {
		return err
	}
	return s.db.Put(peersKey, raw, nil)
}
