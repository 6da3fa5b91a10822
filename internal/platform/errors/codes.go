package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Account errors
	CodeAccountEmpty      Code = "ACCOUNT_EMPTY"
	CodeUnknownAccount    Code = "UNKNOWN_ACCOUNT"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeAmountNotPositive Code = "AMOUNT_NOT_POSITIVE"
	CodeTransferSelf      Code = "TRANSFER_SELF"

	// Vote errors
	CodeVoteSelfReview           Code = "VOTE_SELF_REVIEW"
	CodeVoteDuplicateReviewer    Code = "VOTE_DUPLICATE_REVIEWER"
	CodeVoteConfidenceOutOfRange Code = "VOTE_CONFIDENCE_OUT_OF_RANGE"
	CodeVoteInvalidKind          Code = "VOTE_INVALID_KIND"

	// Proposal errors
	CodeProposalNotFound        Code = "PROPOSAL_NOT_FOUND"
	CodeProposalNotOpen         Code = "PROPOSAL_NOT_OPEN"
	CodeProposalAlreadyResolved Code = "PROPOSAL_ALREADY_RESOLVED"
	CodePayoutFailed            Code = "PAYOUT_FAILED"

	// Ledger errors
	CodeChainIntegrityViolation Code = "CHAIN_INTEGRITY_VIOLATION"
	CodeChainWriteConflict      Code = "CHAIN_WRITE_CONFLICT"
	CodeLedgerInconsistent      Code = "LEDGER_STATE_INCONSISTENT"
	CodeEventInvalid            Code = "EVENT_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeAccountEmpty,
		CodeAmountNotPositive,
		CodeTransferSelf,
		CodeVoteSelfReview,
		CodeVoteConfidenceOutOfRange,
		CodeVoteInvalidKind,
		CodeEventInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInsufficientFunds,
		CodeProposalNotOpen,
		CodePayoutFailed:
		return codes.FailedPrecondition

	// AlreadyExists - duplicate submissions
	case CodeVoteDuplicateReviewer,
		CodeProposalAlreadyResolved:
		return codes.AlreadyExists

	// NotFound - missing records
	case CodeNotFound,
		CodeUnknownAccount,
		CodeProposalNotFound:
		return codes.NotFound

	// DataLoss - the persisted chain no longer matches its hashes
	case CodeChainIntegrityViolation:
		return codes.DataLoss

	// Internal - programming-contract violations
	case CodeChainWriteConflict,
		CodeLedgerInconsistent:
		return codes.Internal

	default:
		return codes.Internal
	}
}
