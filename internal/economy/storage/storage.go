package storage

import (
	"context"
	"errors"

	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness constraint rejected the write.
var ErrAlreadyExists = errors.New("record already exists")

// ErrSeqTaken indicates a concurrent append raced ahead and claimed the
// sequence number. The ledger serializes writers, so observing it means a
// contract violation, not a retryable condition.
var ErrSeqTaken = errors.New("ledger sequence already written")

// LedgerStore persists sealed chain events keyed by sequence number.
// Sealing (sequence assignment, hashing, signing) happens in the ledger;
// the store only rejects events whose sequence is already taken.
type LedgerStore interface {
	AppendEvent(ctx context.Context, evt event.Event) error
	GetEventBySeq(ctx context.Context, seq uint64) (event.Event, error)
	// ListEvents returns events with Seq > afterSeq ordered ascending,
	// at most limit of them.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the highest stored sequence number.
	// Returns ErrNotFound when the chain is empty.
	LatestSeq(ctx context.Context) (uint64, error)
}

// ProposalStore persists proposal records keyed by id.
type ProposalStore interface {
	PutProposal(ctx context.Context, p proposal.Proposal) error
	GetProposal(ctx context.Context, id string) (proposal.Proposal, error)
	// SetState updates the proposal's lifecycle state. Terminal states
	// are sticky: once a proposal is resolved, rejected, or payout_failed
	// the call is a no-op, so a stale transition racing a resolution
	// cannot reopen it.
	SetState(ctx context.Context, id string, state proposal.State) error
	// ClaimResolution atomically flips resolved from false to true.
	// It reports false when the proposal was already resolved, which is
	// how concurrent payout attempts lose the race.
	ClaimResolution(ctx context.Context, id string) (bool, error)
}

// VoteStore persists votes keyed by (proposal id, reviewer id); the key
// enforces the no-double-vote invariant at the storage layer.
type VoteStore interface {
	// PutVote inserts a vote, returning ErrAlreadyExists if the reviewer
	// already voted on the proposal.
	PutVote(ctx context.Context, v proposal.Vote) error
	// ListVotes returns all votes on a proposal in insertion order.
	ListVotes(ctx context.Context, proposalID string) ([]proposal.Vote, error)
}

// Store bundles the persistence interfaces the economy service needs.
type Store interface {
	LedgerStore
	ProposalStore
	VoteStore
}
