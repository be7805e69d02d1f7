package curves

import (
	"fmt"

	"github.com/cipherfund/cipherfund/crypto/ecc"
	bjj "github.com/cipherfund/cipherfund/crypto/ecc/bjj_gnark"
	"github.com/cipherfund/cipherfund/crypto/ecc/bn254"
)

const (
	// CurveTypeBabyJubJub is the default ledger curve.
	CurveTypeBabyJubJub = "bjj_gnark"
	CurveTypeBN254      = "bn254"
)

// New creates a new instance of a curve Point implementation based on the
// provided type string. The supported types are defined as constants in this
// package. If the type is not supported, it will panic.
func New(curveType string) ecc.Point {
	switch curveType {
	case CurveTypeBabyJubJub:
		return bjj.New()
	case CurveTypeBN254:
		return (&bn254.G1{}).New()
	default:
		panic(fmt.Sprintf("unsupported curve type: %s", curveType))
	}
}
