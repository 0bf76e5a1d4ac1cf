package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// GenesisText is the marker recorded as the payload of every genesis block.
const GenesisText = "Genesis Block"

// Set of payload types. Object payloads carry their type in the "type"
// field, which is part of the hashed content.
const (
	TypeGenesis           = "genesis"
	TypeRewardTransaction = "reward_transaction"
	TypeCitizenReport     = "citizen_report"
)

// Payload represents the caller defined content attached to a block. The
// ledger only serializes it for hashing. The set of implementations is
// closed: GenesisMarker, RewardTransaction and CitizenReport.
type Payload interface {
	PayloadType() string
	sealed()
}

// =============================================================================

// GenesisMarker is the string payload of the genesis block.
type GenesisMarker string

// PayloadType implements the Payload interface.
func (GenesisMarker) PayloadType() string { return TypeGenesis }

func (GenesisMarker) sealed() {}

// =============================================================================

// RewardTransaction is an administrative transfer of reward tokens.
type RewardTransaction struct {
	Sender       string  `json:"sender"`
	Recipient    string  `json:"recipient"`
	RewardAmount float64 `json:"reward_amount"`
	Reason       string  `json:"reason,omitempty"`
}

// PayloadType implements the Payload interface.
func (RewardTransaction) PayloadType() string { return TypeRewardTransaction }

func (RewardTransaction) sealed() {}

// MarshalJSON writes the transaction with its type discriminator.
func (tx RewardTransaction) MarshalJSON() ([]byte, error) {
	type fields RewardTransaction
	return json.Marshal(struct {
		Type string `json:"type"`
		fields
	}{
		Type:   TypeRewardTransaction,
		fields: fields(tx),
	})
}

// =============================================================================

// CitizenReport is a leak reported by a citizen together with the reward
// granted for it.
type CitizenReport struct {
	Recipient    string  `json:"recipient"`
	RewardAmount float64 `json:"reward_amount"`
	ZoneID       string  `json:"zone_id,omitempty"`
	Location     string  `json:"location,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	Description  string  `json:"description,omitempty"`
	Photo        string  `json:"photo,omitempty"`
}

// PayloadType implements the Payload interface.
func (CitizenReport) PayloadType() string { return TypeCitizenReport }

func (CitizenReport) sealed() {}

// MarshalJSON writes the report with its type discriminator.
func (cr CitizenReport) MarshalJSON() ([]byte, error) {
	type fields CitizenReport
	return json.Marshal(struct {
		Type string `json:"type"`
		fields
	}{
		Type:   TypeCitizenReport,
		fields: fields(cr),
	})
}

// =============================================================================

// DecodePayload converts the JSON form of a payload back into its variant.
// Fields that are not part of the variant are rejected so content added to
// a stored block can't go unnoticed.
func DecodePayload(data []byte) (Payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}

	if data[0] == '"' {
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return nil, err
		}
		return GenesisMarker(marker), nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case TypeRewardTransaction:
		var v struct {
			Type string `json:"type"`
			RewardTransaction
		}
		if err := decodeStrict(data, &v); err != nil {
			return nil, err
		}
		return v.RewardTransaction, nil

	case TypeCitizenReport:
		var v struct {
			Type string `json:"type"`
			CitizenReport
		}
		if err := decodeStrict(data, &v); err != nil {
			return nil, err
		}
		return v.CitizenReport, nil
	}

	return nil, fmt.Errorf("unknown payload type %q", head.Type)
}

// decodeStrict unmarshals the data rejecting unknown fields.
func decodeStrict(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
