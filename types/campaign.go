package types

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Campaign holds the public metadata and the encrypted aggregates of a
// fundraising campaign. The amounts raised are only ever present as opaque
// ciphertext handles; DonorCount is the plaintext social-proof counter and
// carries no amount information.
type Campaign struct {
	ID          HexBytes       `json:"id"          cbor:"0,keyasint,omitempty"`
	Organizer   common.Address `json:"organizer"   cbor:"1,keyasint,omitempty"`
	Title       string         `json:"title"       cbor:"2,keyasint,omitempty"`
	Description string         `json:"description" cbor:"3,keyasint,omitempty"`
	Category    string         `json:"category"    cbor:"4,keyasint,omitempty"`
	Target      *BigInt        `json:"target"      cbor:"5,keyasint,omitempty"`
	Deadline    time.Time      `json:"deadline"    cbor:"6,keyasint,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"   cbor:"7,keyasint,omitempty"`
	TotalHandle HexBytes       `json:"totalHandle" cbor:"8,keyasint,omitempty"`
	CountHandle HexBytes       `json:"countHandle" cbor:"9,keyasint,omitempty"`
	DonorCount  uint64         `json:"donorCount"  cbor:"10,keyasint,omitempty"`
	Active      bool           `json:"active"      cbor:"11,keyasint,omitempty"`
	Completed   bool           `json:"completed"   cbor:"12,keyasint,omitempty"`
}

func (c *Campaign) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

// DonationRecord is the public metadata of one contribution. It never holds
// the donated amount. Anonymous donations carry the zero donor address.
type DonationRecord struct {
	CampaignID HexBytes       `json:"campaignId" cbor:"0,keyasint,omitempty"`
	Donor      common.Address `json:"donor"      cbor:"1,keyasint,omitempty"`
	Timestamp  time.Time      `json:"timestamp"  cbor:"2,keyasint,omitempty"`
	Anonymous  bool           `json:"anonymous"  cbor:"3,keyasint,omitempty"`
}
