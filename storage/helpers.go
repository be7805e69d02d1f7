package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Artifact encoding/decoding
func encodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

func hashKey(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:maxKeySize]
}

// nextSequence atomically increments and returns a named counter. The first
// value returned for a fresh counter is 0.
func (s *Storage) nextSequence(name []byte) (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	rd := prefixeddb.NewPrefixedReader(s.db, countersPrefix)
	var next uint64
	if data, err := rd.Get(name); err == nil && len(data) == 8 {
		next = binary.BigEndian.Uint64(data)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), countersPrefix)
	if err := wTx.Set(name, buf); err != nil {
		wTx.Discard()
		return 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

func seqKey(owner []byte, seq uint64) []byte {
	key := make([]byte, 0, len(owner)+8)
	key = append(key, owner...)
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}
