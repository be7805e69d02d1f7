package storage

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherfund/cipherfund/types"
)

// PendingRequest is an outstanding withdrawal waiting for the oracle to
// reveal its value. Exactly one finalize can consume it.
type PendingRequest struct {
	ID        types.HexBytes `json:"id"`
	Recipient common.Address `json:"recipient"`
	Handle    types.HexBytes `json:"handle"`
	CreatedAt time.Time      `json:"createdAt"`
}

// DecryptionJob is a unit of work for the oracle service: the serialized
// ciphertext of a pending request, queued until a committee round picks it
// up.
type DecryptionJob struct {
	RequestID  types.HexBytes `json:"requestId"`
	Ciphertext []byte         `json:"ciphertext"`
}
