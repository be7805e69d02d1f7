package tests

import (
	"fmt"

	"github.com/cipherfund/cipherfund/api/client"
	"github.com/cipherfund/cipherfund/types"
)

// toBigInt converts an int64 to a *types.BigInt
func toBigInt(i int64) *types.BigInt {
	bi := new(types.BigInt)
	bi.UnmarshalText([]byte(fmt.Sprintf("%d", i)))
	return bi
}

// NewTestClient creates a new API client for testing.
func NewTestClient(port int) (*client.HTTPclient, error) {
	return client.New(fmt.Sprintf("http://127.0.0.1:%d", port))
}
