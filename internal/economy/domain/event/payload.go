package event

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openclearing/bountyledger/internal/platform/errors"
)

// Payload is one tagged economic fact. Every variant carries enough data to
// be replayed deterministically.
type Payload interface {
	// EventType returns the ledger event type the payload belongs to.
	EventType() Type
	// Validate checks the payload before it is allowed near the chain.
	Validate() error
}

// GenesisPayload is the fixed sentinel payload of the genesis event.
type GenesisPayload struct {
	Note string `json:"note"`
}

// MintPayload captures system-originated token issuance.
type MintPayload struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
	Reason  string `json:"reason,omitempty"`
}

// TransferPayload captures value moving between two accounts.
type TransferPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// PayoutPayload captures a bounty payout from a proposal's escrow to the
// recipient.
type PayoutPayload struct {
	ProposalID string `json:"proposal_id"`
	To         string `json:"to"`
	Amount     int64  `json:"amount"`
}

// BurnPayload captures tokens being removed from circulation.
type BurnPayload struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
	Reason  string `json:"reason,omitempty"`
}

// EventType implements Payload.
func (GenesisPayload) EventType() Type { return TypeGenesis }

// EventType implements Payload.
func (MintPayload) EventType() Type { return TypeMint }

// EventType implements Payload.
func (TransferPayload) EventType() Type { return TypeTransfer }

// EventType implements Payload.
func (PayoutPayload) EventType() Type { return TypePayout }

// EventType implements Payload.
func (BurnPayload) EventType() Type { return TypeBurn }

// Validate implements Payload.
func (GenesisPayload) Validate() error { return nil }

// Validate implements Payload.
func (p MintPayload) Validate() error {
	if strings.TrimSpace(p.Account) == "" {
		return errors.New(errors.CodeAccountEmpty, "mint account is required")
	}
	return validateAmount(p.Amount)
}

// Validate implements Payload.
func (p TransferPayload) Validate() error {
	if strings.TrimSpace(p.From) == "" || strings.TrimSpace(p.To) == "" {
		return errors.New(errors.CodeAccountEmpty, "transfer accounts are required")
	}
	if p.From == p.To {
		return errors.New(errors.CodeTransferSelf, "transfer source and destination are the same account")
	}
	return validateAmount(p.Amount)
}

// Validate implements Payload.
func (p PayoutPayload) Validate() error {
	if strings.TrimSpace(p.ProposalID) == "" {
		return errors.New(errors.CodeEventInvalid, "payout proposal id is required")
	}
	if strings.TrimSpace(p.To) == "" {
		return errors.New(errors.CodeAccountEmpty, "payout recipient is required")
	}
	return validateAmount(p.Amount)
}

// Validate implements Payload.
func (p BurnPayload) Validate() error {
	if strings.TrimSpace(p.Account) == "" {
		return errors.New(errors.CodeAccountEmpty, "burn account is required")
	}
	return validateAmount(p.Amount)
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return errors.New(errors.CodeAmountNotPositive, "amount must be positive")
	}
	return nil
}

// New builds an unsealed event for the given payload. Sequence, hashes, and
// timestamp are assigned by the ledger on append.
func New(payload Payload) (Event, error) {
	if payload == nil {
		return Event{}, errors.New(errors.CodeEventInvalid, "event payload is required")
	}
	if err := payload.Validate(); err != nil {
		return Event{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Event{
		Type:        payload.EventType(),
		PayloadJSON: raw,
	}, nil
}

// DecodePayload decodes the event's payload into its tagged variant.
// Consumption sites switch exhaustively over the variants.
func DecodePayload(evt Event) (Payload, error) {
	var payload Payload
	switch evt.Type {
	case TypeGenesis:
		payload = &GenesisPayload{}
	case TypeMint:
		payload = &MintPayload{}
	case TypeTransfer:
		payload = &TransferPayload{}
	case TypePayout:
		payload = &PayoutPayload{}
	case TypeBurn:
		payload = &BurnPayload{}
	default:
		return nil, errors.New(errors.CodeEventInvalid, fmt.Sprintf("unknown event type %q", evt.Type))
	}
	if err := json.Unmarshal(evt.PayloadJSON, payload); err != nil {
		return nil, errors.Wrap(errors.CodeEventInvalid, "decode event payload", err)
	}
	switch p := payload.(type) {
	case *GenesisPayload:
		return *p, nil
	case *MintPayload:
		return *p, nil
	case *TransferPayload:
		return *p, nil
	case *PayoutPayload:
		return *p, nil
	case *BurnPayload:
		return *p, nil
	}
	return nil, errors.New(errors.CodeEventInvalid, "unreachable payload variant")
}
