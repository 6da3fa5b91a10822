// Package consensus runs the vote-quorum lifecycle for bounty proposals:
// submission escrows the bounty, accepted votes trigger a fresh quorum
// evaluation, and the first passing evaluation hands off to the payout.
package consensus

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openclearing/bountyledger/internal/economy/coordinator"
	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/storage"
	"github.com/openclearing/bountyledger/internal/platform/errors"
	"github.com/openclearing/bountyledger/internal/platform/id"
)

// Config holds the quorum rule parameters.
type Config struct {
	// MinReviewers is the minimum number of votes before consensus can
	// be reached at all.
	MinReviewers int `env:"MIN_REVIEWERS" envDefault:"2"`
	// ApprovalThreshold is the minimum fraction of approve votes.
	ApprovalThreshold float64 `env:"APPROVAL_THRESHOLD" envDefault:"0.60"`
	// ConfidenceThreshold is the minimum average confidence across all
	// votes.
	ConfidenceThreshold float64 `env:"CONFIDENCE_THRESHOLD" envDefault:"0.70"`
}

// DefaultConfig returns the stock quorum rule: two reviewers, 60%
// approvals, 0.70 average confidence.
func DefaultConfig() Config {
	return Config{MinReviewers: 2, ApprovalThreshold: 0.60, ConfidenceThreshold: 0.70}
}

// Engine drives proposals from submission to resolution. It owns no
// balances itself; every token movement goes through the coordinator.
type Engine struct {
	cfg       Config
	coord     *coordinator.Coordinator
	proposals storage.ProposalStore
	votes     storage.VoteStore
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the vote timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New constructs an Engine.
func New(cfg Config, coord *coordinator.Coordinator, proposals storage.ProposalStore, votes storage.VoteStore, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		coord:     coord,
		proposals: proposals,
		votes:     votes,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitProposal registers a new proposal and escrows its bounty. The
// creator must hold at least the bounty; otherwise nothing is recorded
// and the caller sees INSUFFICIENT_FUNDS (or UNKNOWN_ACCOUNT for a
// creator with no ledger history).
func (e *Engine) SubmitProposal(ctx context.Context, creator string, bounty int64, metadata string) (proposal.Proposal, error) {
	if strings.TrimSpace(creator) == "" {
		return proposal.Proposal{}, errors.New(errors.CodeAccountEmpty, "creator account is required")
	}
	if bounty <= 0 {
		return proposal.Proposal{}, errors.New(errors.CodeAmountNotPositive, "bounty must be positive")
	}

	proposalID, err := id.NewID()
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("generate proposal id: %w", err)
	}

	if _, err := e.coord.Transfer(ctx, creator, event.EscrowAccount(proposalID), bounty, "bounty escrow"); err != nil {
		return proposal.Proposal{}, err
	}

	p := proposal.Proposal{
		ID:        proposalID,
		Creator:   creator,
		Bounty:    bounty,
		Metadata:  metadata,
		State:     proposal.StateProposed,
		CreatedAt: e.now(),
	}
	if err := e.proposals.PutProposal(ctx, p); err != nil {
		// The escrow transfer is already on the chain; return it so the
		// creator is not left short over a store hiccup.
		if _, refundErr := e.coord.Transfer(ctx, event.EscrowAccount(proposalID), creator, bounty, "escrow refund"); refundErr != nil {
			return proposal.Proposal{}, fmt.Errorf("store proposal: %v (escrow refund also failed: %w)", err, refundErr)
		}
		return proposal.Proposal{}, fmt.Errorf("store proposal: %w", err)
	}
	return p, nil
}

// SubmitVote records a reviewer's vote and re-evaluates the quorum rule.
// The returned result reflects all votes on the proposal including this
// one. Duplicate reviewers and self-reviews are rejected without touching
// stored state.
func (e *Engine) SubmitVote(ctx context.Context, vote proposal.Vote) (proposal.ConsensusResult, error) {
	p, err := e.load(ctx, vote.ProposalID)
	if err != nil {
		return proposal.ConsensusResult{}, err
	}
	if p.State.Terminal() {
		return proposal.ConsensusResult{}, errors.New(errors.CodeProposalNotOpen,
			fmt.Sprintf("proposal %q is %s and no longer accepts votes", p.ID, p.State))
	}
	if err := vote.Validate(p); err != nil {
		return proposal.ConsensusResult{}, err
	}
	if vote.CastAt.IsZero() {
		vote.CastAt = e.now()
	}

	if err := e.votes.PutVote(ctx, vote); err != nil {
		if err == storage.ErrAlreadyExists {
			return proposal.ConsensusResult{}, errors.New(errors.CodeVoteDuplicateReviewer,
				fmt.Sprintf("reviewer %q already voted on proposal %q", vote.ReviewerID, p.ID))
		}
		return proposal.ConsensusResult{}, fmt.Errorf("store vote: %w", err)
	}

	if p.State == proposal.StateProposed {
		if err := e.proposals.SetState(ctx, p.ID, proposal.StateUnderReview); err != nil {
			return proposal.ConsensusResult{}, fmt.Errorf("mark under review: %w", err)
		}
	}

	return e.Evaluate(ctx, p.ID)
}

// Evaluate recomputes the quorum rule from all stored votes and, on the
// first pass, executes the payout. Losing the resolution race to a
// concurrent evaluation is logged and treated as success: the proposal
// got paid, just not by us.
func (e *Engine) Evaluate(ctx context.Context, proposalID string) (proposal.ConsensusResult, error) {
	votes, err := e.votes.ListVotes(ctx, proposalID)
	if err != nil {
		return proposal.ConsensusResult{}, fmt.Errorf("list votes: %w", err)
	}
	result := proposal.Compute(proposalID, votes, e.cfg.MinReviewers, e.cfg.ApprovalThreshold, e.cfg.ConfidenceThreshold)
	if !result.Reached {
		return result, nil
	}

	p, err := e.load(ctx, proposalID)
	if err != nil {
		return proposal.ConsensusResult{}, err
	}
	if p.State.Terminal() {
		return result, nil
	}
	if p.State != proposal.StateConsensusReached {
		if err := e.proposals.SetState(ctx, proposalID, proposal.StateConsensusReached); err != nil {
			return proposal.ConsensusResult{}, fmt.Errorf("mark consensus reached: %w", err)
		}
	}

	if _, err := e.coord.PayoutFor(ctx, proposalID); err != nil {
		if errors.IsCode(err, errors.CodeProposalAlreadyResolved) {
			log.Printf("consensus: proposal %s resolved by concurrent evaluation", proposalID)
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// Reject closes an open proposal and refunds the escrowed bounty to the
// creator. It shares the resolution claim with the payout path, so a
// proposal can be paid out or rejected but never both.
func (e *Engine) Reject(ctx context.Context, proposalID, reason string) error {
	p, err := e.load(ctx, proposalID)
	if err != nil {
		return err
	}
	if p.State.Terminal() {
		return errors.New(errors.CodeProposalAlreadyResolved,
			fmt.Sprintf("proposal %q is already %s", p.ID, p.State))
	}

	claimed, err := e.proposals.ClaimResolution(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("claim resolution: %w", err)
	}
	if !claimed {
		return errors.New(errors.CodeProposalAlreadyResolved, "proposal is already resolved")
	}

	if reason == "" {
		reason = "proposal rejected"
	}
	if _, err := e.coord.Transfer(ctx, event.EscrowAccount(p.ID), p.Creator, p.Bounty, reason); err != nil {
		return errors.Wrap(errors.CodePayoutFailed, "escrow refund failed after resolution claim", err)
	}
	if err := e.proposals.SetState(ctx, p.ID, proposal.StateRejected); err != nil {
		return fmt.Errorf("mark rejected: %w", err)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, proposalID string) (proposal.Proposal, error) {
	p, err := e.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		if err == storage.ErrNotFound {
			return proposal.Proposal{}, errors.New(errors.CodeProposalNotFound,
				fmt.Sprintf("proposal %q not found", proposalID))
		}
		return proposal.Proposal{}, fmt.Errorf("load proposal: %w", err)
	}
	return p, nil
}
