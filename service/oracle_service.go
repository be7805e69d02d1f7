package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.vocdoni.io/dvote/log"

	"github.com/cipherfund/cipherfund/crypto/elgamal"
	"github.com/cipherfund/cipherfund/ledger"
	"github.com/cipherfund/cipherfund/oracle"
	"github.com/cipherfund/cipherfund/storage"
	"github.com/cipherfund/cipherfund/types"
	"github.com/cipherfund/cipherfund/vault"
)

// OracleService represents a service that polls the decryption job queue,
// runs a committee decryption round over each job and finalizes the
// corresponding withdrawal in the vault.
type OracleService struct {
	committee *oracle.Committee
	storage   *storage.Storage
	vault     *vault.Vault
	ledger    *ledger.Ledger
	interval  time.Duration
	mu        sync.Mutex
	cancel    context.CancelFunc
}

// NewOracle creates a new OracleService instance.
func NewOracle(committee *oracle.Committee, stg *storage.Storage, v *vault.Vault, l *ledger.Ledger, interval time.Duration) *OracleService {
	return &OracleService{
		committee: committee,
		storage:   stg,
		vault:     v,
		ledger:    l,
		interval:  interval,
	}
}

// Start begins polling for decryption jobs. It returns an error if the
// service is already running.
func (os *OracleService) Start(ctx context.Context) error {
	os.mu.Lock()
	defer os.mu.Unlock()

	if os.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	os.cancel = cancel

	go os.processJobs(ctx)
	return nil
}

// Stop halts the oracle worker.
func (os *OracleService) Stop() {
	os.mu.Lock()
	defer os.mu.Unlock()

	if os.cancel != nil {
		os.cancel()
		os.cancel = nil
	}
}

func (os *OracleService) processJobs(ctx context.Context) {
	ticker := time.NewTicker(os.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				if done := os.processNextJob(); done {
					break
				}
			}
		}
	}
}

// processNextJob pulls one job from the queue and runs it end to end. It
// reports true when the queue is drained.
func (os *OracleService) processNextJob() bool {
	job, key, err := os.storage.NextDecryptionJob()
	if err != nil {
		if !errors.Is(err, storage.ErrNoMoreElements) {
			log.Warnw("failed to pull decryption job", "error", err.Error())
		}
		return true
	}

	ct := elgamal.NewCiphertext(os.ledger.Curve())
	if err := ct.Deserialize(job.Ciphertext); err != nil {
		// a corrupt job can never succeed, drop it
		log.Warnw("corrupt decryption job", "requestId", job.RequestID.String(), "error", err.Error())
		if err := os.storage.MarkDecryptionJobDone(key); err != nil {
			log.Warnw("failed to drop corrupt job", "error", err.Error())
		}
		return false
	}

	result, err := os.committee.Attest(job.RequestID, ct, types.MaxLedgerValue)
	if err != nil {
		log.Warnw("decryption round failed", "requestId", job.RequestID.String(), "error", err.Error())
		if err := os.storage.ReleaseDecryptionJob(key); err != nil {
			log.Warnw("failed to release decryption job", "error", err.Error())
		}
		return false
	}

	if err := os.vault.Finalize(result.RequestID, result.Value, result.Signatures); err != nil {
		if errors.Is(err, vault.ErrInvalidRequest) {
			// already finalized elsewhere, drop the job
			if err := os.storage.MarkDecryptionJobDone(key); err != nil {
				log.Warnw("failed to drop stale job", "error", err.Error())
			}
			return false
		}
		log.Warnw("finalize failed", "requestId", result.RequestID.String(), "error", err.Error())
		if err := os.storage.ReleaseDecryptionJob(key); err != nil {
			log.Warnw("failed to release decryption job", "error", err.Error())
		}
		return false
	}

	if err := os.storage.MarkDecryptionJobDone(key); err != nil {
		log.Warnw("failed to mark decryption job done", "error", err.Error())
	}
	log.Debugw("decryption job finalized", "requestId", result.RequestID.String())
	return false
}
