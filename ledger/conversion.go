package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/cipherfund/cipherfund/types"
)

var (
	// ErrDustDeposit is returned when a base-currency amount is too small to
	// convert into a single ledger unit.
	ErrDustDeposit = errors.New("amount below one ledger unit")
	// ErrAmountTooLarge is returned when a conversion does not fit the
	// ledger's value width.
	ErrAmountTooLarge = errors.New("amount exceeds ledger value width")
)

// Converter applies the fixed-rate policy between base currency (wei-scale
// integers) and ledger units. The rate is fixed at construction; there is no
// oracle-fed pricing.
type Converter struct {
	// Rate is the amount of base currency one ledger unit represents.
	Rate *big.Int
}

// NewConverter returns a Converter with the given base-per-unit rate.
func NewConverter(rate *big.Int) (*Converter, error) {
	if rate == nil || rate.Sign() <= 0 {
		return nil, fmt.Errorf("conversion rate must be positive")
	}
	return &Converter{Rate: new(big.Int).Set(rate)}, nil
}

// ToUnits converts a base-currency amount into whole ledger units plus the
// non-convertible remainder. Amounts below one unit are rejected rather than
// silently swallowed, so the caller can refund them in full.
func (c *Converter) ToUnits(base *big.Int) (units uint64, remainder *big.Int, err error) {
	if base == nil || base.Sign() <= 0 {
		return 0, nil, ErrDustDeposit
	}
	q, r := new(big.Int).QuoRem(base, c.Rate, new(big.Int))
	if q.Sign() == 0 {
		return 0, nil, ErrDustDeposit
	}
	if !q.IsUint64() || q.Uint64() > types.MaxLedgerValue {
		return 0, nil, fmt.Errorf("%w: %s units", ErrAmountTooLarge, q)
	}
	return q.Uint64(), r, nil
}

// ToBase converts ledger units back into base currency.
func (c *Converter) ToBase(units uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(units), c.Rate)
}
