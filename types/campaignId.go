package types

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// CampaignID is the type to identify a fundraising campaign. It is composed of:
// - ChainID (4 bytes)
// - Organizer address (20 bytes)
// - Nonce (8 bytes)
type CampaignID struct {
	Organizer common.Address
	Nonce     uint64
	ChainID   uint32
}

// Marshal encodes CampaignID to bytes.
func (c *CampaignID) Marshal() []byte {
	chainID := make([]byte, 4)
	binary.BigEndian.PutUint32(chainID, c.ChainID)

	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, c.Nonce)

	var id bytes.Buffer
	id.Write(chainID[:4])
	id.Write(c.Organizer.Bytes()[:20])
	id.Write(nonce[:8])
	return id.Bytes()
}

// Unmarshal decodes bytes to CampaignID.
func (c *CampaignID) Unmarshal(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("invalid CampaignID length: %d", len(data))
	}
	c.ChainID = binary.BigEndian.Uint32(data[:4])
	c.Organizer = common.BytesToAddress(data[4:24])
	c.Nonce = binary.BigEndian.Uint64(data[24:32])
	return nil
}

// SetBytes decodes bytes to CampaignID and returns the receiver, or nil if the
// data is not a valid campaign ID.
func (c *CampaignID) SetBytes(data []byte) *CampaignID {
	if err := c.Unmarshal(data); err != nil {
		return nil
	}
	return c
}

// MarshalBinary implements the BinaryMarshaler interface.
func (c *CampaignID) MarshalBinary() (data []byte, err error) {
	return c.Marshal(), nil
}

// UnmarshalBinary implements the BinaryUnmarshaler interface.
func (c *CampaignID) UnmarshalBinary(data []byte) error {
	return c.Unmarshal(data)
}

// String returns a human readable representation of the campaign ID.
func (c *CampaignID) String() string {
	return hex.EncodeToString(c.Marshal())
}
