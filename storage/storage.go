// storage package contains all the artifacts that are stored in the database,
// but also is an abstraction of a queue for the decryption jobs processed by
// the oracle service. The storage package includes a prefixed key-value store
// that allows to store the different types of artifacts in the database. The
// following prefixes are used:
//   - 'c/' for campaigns
//   - 'ca/' for the active campaign set (position -> campaign id)
//   - 'ci/' for the active-set index map (campaign id -> position)
//   - 'co/' for the organizer campaign index
//   - 'di/' for the donor campaign index
//   - 'dn/' for donation records
//   - 'pr/' for pending decryption requests
//   - 'pq/' for decryption jobs (queued)
//   - 'rq/' for decryption job reservations
//   - 'kv/' for sequence counters
package storage

import (
	"errors"
	"sync"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// Prefixes for the keys in the database.
	campaignPrefix       = []byte("c/")
	activeSetPrefix      = []byte("ca/")
	activeIndexPrefix    = []byte("ci/")
	organizerIndexPrefix = []byte("co/")
	donorIndexPrefix     = []byte("di/")
	donationPrefix       = []byte("dn/")
	pendingReqPrefix     = []byte("pr/")
	decryptJobPrefix     = []byte("pq/")
	decryptReservPrefix  = []byte("rq/")
	countersPrefix       = []byte("kv/")
)

const (
	// maxKeySize is the maximum size of the key in bytes. It is used to
	// generate the key of the artifacts stored in the database by truncating
	// the hash of the artifact itself.
	maxKeySize = 12
)

var (
	// ErrNotFound is returned when the artifact is not found in the storage.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned when there are no more elements in the
	// queue.
	ErrNoMoreElements = errors.New("no more elements")
)

// Storage is the interface that wraps the basic methods to interact with the
// storage.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	s.db.Close()
}

// setArtifact encodes and stores an artifact under prefix/key.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// getArtifact loads and decodes the artifact stored under prefix/key into
// out. Returns ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := rd.Get(key)
	if err != nil {
		return ErrNotFound
	}
	return decodeArtifact(data, out)
}

// deleteArtifact removes the artifact stored under prefix/key.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		return ErrNotFound
	}
	return wTx.Commit()
}

// listArtifacts returns the keys stored under prefix.
func (s *Storage) listArtifacts(prefix []byte) ([][]byte, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	var keys [][]byte
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		key := make([]byte, len(k))
		copy(key, k)
		keys = append(keys, key)
		return true
	}); err != nil {
		return nil, err
	}
	return keys, nil
}

// isReserved reports whether a reservation exists for key under the given
// reservation prefix.
func (s *Storage) isReserved(prefix, key []byte) bool {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	_, err := rd.Get(key)
	return err == nil
}

// setReservation marks key as reserved under the given reservation prefix.
func (s *Storage) setReservation(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, []byte{1}); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}
