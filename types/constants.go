package types

const (
	// LedgerWidth is the declared bit width of plaintext ledger values. Any
	// conversion producing an amount that does not fit this width is rejected
	// before encryption.
	LedgerWidth = 32
	// MaxLedgerValue is the largest plaintext value representable in the
	// ledger's declared width.
	MaxLedgerValue = uint64(1)<<LedgerWidth - 1
	// AccountTreeMaxLevels is the maximum number of levels in the account
	// merkle tree.
	AccountTreeMaxLevels = 160
)
