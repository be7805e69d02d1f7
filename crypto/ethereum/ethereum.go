// Package ethereum provides secp256k1 signing keys with Ethereum-style
// message signatures. The oracle committee uses these keys to authenticate
// decryption results delivered to the vault callback.
package ethereum

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size in bytes of an ECDSA signature with recovery id.
const SignatureLength = 65

// SignKeys manages an ECDSA keypair for signing and verification.
type SignKeys struct {
	Public  *ecdsa.PublicKey
	Private *ecdsa.PrivateKey
}

// NewSignKeys creates an empty SignKeys.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate creates a fresh random keypair.
func (k *SignKeys) Generate() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	k.Private = key
	k.Public = &key.PublicKey
	return nil
}

// AddHexKey imports a private key from its hexadecimal representation.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := crypto.HexToECDSA(trimHex(privHex))
	if err != nil {
		return err
	}
	k.Private = key
	k.Public = &key.PublicKey
	return nil
}

// HexString returns the compressed public key and the private key as
// hexadecimal strings.
func (k *SignKeys) HexString() (string, string) {
	pub := hex.EncodeToString(crypto.CompressPubkey(k.Public))
	priv := hex.EncodeToString(crypto.FromECDSA(k.Private))
	return pub, priv
}

// Address returns the Ethereum address derived from the public key.
func (k *SignKeys) Address() common.Address {
	return crypto.PubkeyToAddress(*k.Public)
}

// SignEthereum signs the message with the Ethereum message prefix and returns
// the 65-byte signature.
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.Private == nil {
		return nil, fmt.Errorf("no private key available")
	}
	return crypto.Sign(HashEthereumMsg(message), k.Private)
}

// AddrFromSignature recovers the address which created the given signature of
// the given (unhashed) message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(HashEthereumMsg(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// HashRaw hashes data with Keccak256.
func HashRaw(data []byte) []byte {
	return crypto.Keccak256(data)
}

// HashEthereumMsg hashes data prepending the Ethereum signed-message prefix.
func HashEthereumMsg(data []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(data))
	return HashRaw(append([]byte(prefix), data...))
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
