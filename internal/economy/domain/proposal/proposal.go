// Package proposal defines bounty proposals, reviewer votes, and the
// consensus result computed over them.
package proposal

import (
	"strings"
	"time"

	"github.com/openclearing/bountyledger/internal/platform/errors"
)

// State is the lifecycle state of a proposal.
type State string

const (
	// StateProposed is the initial state after submission.
	StateProposed State = "proposed"
	// StateUnderReview is entered on the first accepted vote.
	StateUnderReview State = "under_review"
	// StateConsensusReached is entered when the quorum rule first passes.
	StateConsensusReached State = "consensus_reached"
	// StateResolved is terminal: the bounty has been paid out.
	StateResolved State = "resolved"
	// StateRejected is terminal: an external decision closed the proposal
	// and the escrow was refunded.
	StateRejected State = "rejected"
	// StatePayoutFailed is terminal: the payout could not be executed and
	// the proposal requires manual intervention.
	StatePayoutFailed State = "payout_failed"
)

// Terminal reports whether no further state transitions are allowed.
func (s State) Terminal() bool {
	switch s {
	case StateResolved, StateRejected, StatePayoutFailed:
		return true
	}
	return false
}

// Proposal is a unit of work with an attached bounty, subject to review.
type Proposal struct {
	ID      string
	Creator string
	// Bounty is the escrowed amount, in integer minor units.
	Bounty   int64
	Metadata string
	State    State
	// Resolved is set exactly once, atomically with the payout append.
	Resolved  bool
	CreatedAt time.Time
}

// Kind is a reviewer's judgment category.
type Kind string

const (
	// KindApprove endorses the proposal.
	KindApprove Kind = "approve"
	// KindRequestChanges asks for rework; counts against the approval rate.
	KindRequestChanges Kind = "request_changes"
	// KindComment is neutral; counts against the approval rate but carries
	// confidence like any other vote.
	KindComment Kind = "comment"
)

// IsValid reports whether the kind is one of the known judgments.
func (k Kind) IsValid() bool {
	switch k {
	case KindApprove, KindRequestChanges, KindComment:
		return true
	}
	return false
}

// Vote is one reviewer's judgment on a proposal.
type Vote struct {
	ProposalID string
	ReviewerID string
	Kind       Kind
	// Confidence is the reviewer's self-assessed certainty in [0, 1].
	Confidence float64
	CastAt     time.Time
}

// Validate checks a vote against the proposal it targets. Duplicate
// reviewers are enforced at the storage layer, not here.
func (v Vote) Validate(p Proposal) error {
	if strings.TrimSpace(v.ReviewerID) == "" {
		return errors.New(errors.CodeAccountEmpty, "reviewer id is required")
	}
	if v.ReviewerID == p.Creator {
		return errors.New(errors.CodeVoteSelfReview, "creator may not review their own proposal")
	}
	if !v.Kind.IsValid() {
		return errors.New(errors.CodeVoteInvalidKind, "unknown vote kind")
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return errors.New(errors.CodeVoteConfidenceOutOfRange, "confidence must be within [0, 1]")
	}
	return nil
}

// ConsensusResult is the quorum evaluation over all votes on a proposal.
// It is recomputed from scratch after every accepted vote rather than
// mutated incrementally, to avoid drift.
type ConsensusResult struct {
	ProposalID    string
	Votes         int
	Approvals     int
	ApprovalRate  float64
	AvgConfidence float64
	Reached       bool
}

// Compute evaluates the approval-rate/confidence-rate rule over votes.
// Fewer than minReviewers votes never reaches consensus.
func Compute(proposalID string, votes []Vote, minReviewers int, approvalThreshold, confidenceThreshold float64) ConsensusResult {
	result := ConsensusResult{ProposalID: proposalID, Votes: len(votes)}
	if len(votes) == 0 {
		return result
	}

	var confidenceSum float64
	for _, vote := range votes {
		if vote.Kind == KindApprove {
			result.Approvals++
		}
		confidenceSum += vote.Confidence
	}
	result.ApprovalRate = float64(result.Approvals) / float64(len(votes))
	result.AvgConfidence = confidenceSum / float64(len(votes))

	if len(votes) < minReviewers {
		return result
	}
	result.Reached = result.ApprovalRate >= approvalThreshold &&
		result.AvgConfidence >= confidenceThreshold
	return result
}
