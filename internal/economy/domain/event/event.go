package event

import (
	"strings"
	"time"
)

// Type identifies the type of an economic event.
type Type string

// Economic event types. Votes are not economic events and never reach the
// ledger; only facts that move value do.
const (
	// TypeGenesis anchors the chain; appended exactly once at sequence 0.
	TypeGenesis Type = "economy.genesis"
	// TypeMint records system-originated token issuance.
	TypeMint Type = "economy.mint"
	// TypeTransfer records value moving between two accounts.
	TypeTransfer Type = "economy.transfer"
	// TypePayout records a bounty being paid out for a resolved proposal.
	TypePayout Type = "economy.payout"
	// TypeBurn records tokens being removed from circulation.
	TypeBurn Type = "economy.burn"
)

// GenesisPrevHash is the sentinel previous-hash of the genesis event.
const GenesisPrevHash = "0"

// Event represents one immutable entry in the hash-chained ledger.
type Event struct {
	// Seq is the event sequence number (genesis is 0).
	// Assigned by the ledger on append.
	Seq uint64
	// Timestamp is when the event was appended.
	Timestamp time.Time
	// Type identifies the kind of economic event.
	Type Type
	// Hash is the content hash over (seq, timestamp, type, payload).
	Hash string
	// PrevHash is the chain hash of the preceding event
	// (GenesisPrevHash for genesis).
	PrevHash string
	// ChainHash links Hash to PrevHash; the next event stores it as its
	// PrevHash.
	ChainHash string
	// Signature is an optional HMAC over ChainHash.
	Signature string
	// SignatureKeyID names the keyring entry that produced Signature.
	SignatureKeyID string
	// PayloadJSON holds the serialized tagged payload.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	switch t {
	case TypeGenesis, TypeMint, TypeTransfer, TypePayout, TypeBurn:
		return true
	}
	return false
}

// IsGenesis reports whether the event is the chain anchor.
func (e Event) IsGenesis() bool {
	return e.Type == TypeGenesis
}

// EscrowAccount returns the ledger account that holds a proposal's bounty
// between submission and resolution.
func EscrowAccount(proposalID string) string {
	return "escrow:" + strings.TrimSpace(proposalID)
}
