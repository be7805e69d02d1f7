package storage

import (
	"errors"
	"fmt"

	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/cipherfund/cipherfund/types"
)

// SetPendingRequest stores an outstanding withdrawal request, keyed by its
// id.
func (s *Storage) SetPendingRequest(r *PendingRequest) error {
	if r == nil || len(r.ID) == 0 {
		return fmt.Errorf("nil or unkeyed pending request")
	}
	return s.setArtifact(pendingReqPrefix, r.ID, r)
}

// PendingRequest retrieves an outstanding request by id. Returns ErrNotFound
// if no such request exists, which is how a duplicate or stale finalize
// callback is detected.
func (s *Storage) PendingRequest(id types.HexBytes) (*PendingRequest, error) {
	r := &PendingRequest{}
	if err := s.getArtifact(pendingReqPrefix, id, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeletePendingRequest removes a pending request. It must happen before any
// value moves during finalize.
func (s *Storage) DeletePendingRequest(id types.HexBytes) error {
	return s.deleteArtifact(pendingReqPrefix, id)
}

// ListPendingRequests returns the ids of all outstanding requests.
func (s *Storage) ListPendingRequests() ([][]byte, error) {
	return s.listArtifacts(pendingReqPrefix)
}

// PushDecryptionJob stores a new decryption job into the oracle queue.
func (s *Storage) PushDecryptionJob(j *DecryptionJob) error {
	val, err := encodeArtifact(j)
	if err != nil {
		return fmt.Errorf("encode decryption job: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), decryptJobPrefix)
	key := hashKey(val)
	if err := wTx.Set(key, val); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// NextDecryptionJob returns the next non-reserved decryption job, creates a
// reservation, and returns it. It returns the job, the key, and an error. If
// no jobs are available, returns ErrNoMoreElements. The key is used to mark
// the job as done after processing, or to release it back to the queue.
func (s *Storage) NextDecryptionJob() (*DecryptionJob, []byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	pr := prefixeddb.NewPrefixedReader(s.db, decryptJobPrefix)
	var chosenKey, chosenVal []byte
	if err := pr.Iterate(nil, func(k, v []byte) bool {
		// check if reserved
		if s.isReserved(decryptReservPrefix, k) {
			return true
		}
		chosenKey = make([]byte, len(k))
		copy(chosenKey, k)
		chosenVal = v
		return false
	}); err != nil {
		return nil, nil, fmt.Errorf("iterate decryption jobs: %w", err)
	}
	if chosenVal == nil {
		return nil, nil, ErrNoMoreElements
	}

	var j DecryptionJob
	if err := decodeArtifact(chosenVal, &j); err != nil {
		return nil, nil, fmt.Errorf("decode decryption job: %w", err)
	}

	if err := s.setReservation(decryptReservPrefix, chosenKey); err != nil {
		return nil, nil, ErrNoMoreElements
	}

	return &j, chosenKey, nil
}

// MarkDecryptionJobDone removes the reservation and the job itself once the
// oracle has produced and delivered a result for it.
func (s *Storage) MarkDecryptionJobDone(k []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(decryptReservPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete job reservation: %w", err)
	}
	if err := s.deleteArtifact(decryptJobPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete decryption job: %w", err)
	}
	return nil
}

// ReleaseDecryptionJob drops the reservation but keeps the job queued, so a
// failed processing attempt can be retried later.
func (s *Storage) ReleaseDecryptionJob(k []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(decryptReservPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete job reservation: %w", err)
	}
	return nil
}
