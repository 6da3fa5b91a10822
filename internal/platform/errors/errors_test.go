package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeInsufficientFunds, "balance too low")
	if !errors.Is(err, New(CodeInsufficientFunds, "other message")) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(err, New(CodeUnknownAccount, "balance too low")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(CodeLedgerInconsistent, "apply failed after append", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if got := GetCode(err); got != CodeLedgerInconsistent {
		t.Fatalf("code = %q, want %q", got, CodeLedgerInconsistent)
	}
}

func TestGetCodeUnknownForPlainErrors(t *testing.T) {
	if got := GetCode(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}

func TestHandleErrorMapsGRPCCode(t *testing.T) {
	err := HandleError(WithMetadata(CodeChainIntegrityViolation, "hash mismatch", map[string]string{
		"at_sequence": "7",
	}))
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.DataLoss {
		t.Fatalf("grpc code = %v, want %v", st.Code(), codes.DataLoss)
	}
}

func TestHandleErrorHidesPlainErrors(t *testing.T) {
	err := HandleError(fmt.Errorf("sqlite exploded"))
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.Internal {
		t.Fatalf("grpc code = %v, want %v", st.Code(), codes.Internal)
	}
	if st.Message() == "sqlite exploded" {
		t.Fatal("expected internal error details to be hidden")
	}
}

func TestGRPCCodeCoversAllCodes(t *testing.T) {
	all := []Code{
		CodeAccountEmpty, CodeUnknownAccount, CodeInsufficientFunds,
		CodeAmountNotPositive, CodeVoteSelfReview, CodeVoteDuplicateReviewer,
		CodeVoteConfidenceOutOfRange, CodeVoteInvalidKind,
		CodeProposalNotFound, CodeProposalNotOpen, CodeProposalAlreadyResolved,
		CodePayoutFailed, CodeChainIntegrityViolation, CodeChainWriteConflict,
		CodeLedgerInconsistent, CodeEventInvalid, CodeNotFound,
	}
	for _, code := range all {
		if got := code.GRPCCode(); got == codes.OK {
			t.Fatalf("code %q mapped to OK", code)
		}
	}
}
