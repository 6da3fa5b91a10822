package app

import (
	"context"
	"testing"

	"github.com/openclearing/bountyledger/internal/economy/consensus"
	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/storage/memory"
	"github.com/openclearing/bountyledger/internal/platform/errors"
)

func newTestService(t *testing.T, store *memory.Store) *Service {
	t.Helper()
	service, err := New(context.Background(), store, consensus.DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestBountyLifecycle(t *testing.T) {
	store := memory.NewStore()
	service := newTestService(t, store)
	ctx := context.Background()

	if _, err := service.Mint(ctx, "creator", 100, "grant"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	p, err := service.SubmitProposal(ctx, "creator", 40, "fix flaky retry loop")
	if err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	if got := service.BalanceOf("creator"); got != 60 {
		t.Fatalf("creator balance after escrow = %d, want 60", got)
	}

	// Approve, request changes, approve: quorum passes only on the third
	// vote (2/3 approvals, avg confidence 0.75).
	votes := []proposal.Vote{
		{ProposalID: p.ID, ReviewerID: "rev-1", Kind: proposal.KindApprove, Confidence: 0.85},
		{ProposalID: p.ID, ReviewerID: "rev-2", Kind: proposal.KindRequestChanges, Confidence: 0.50},
		{ProposalID: p.ID, ReviewerID: "rev-3", Kind: proposal.KindApprove, Confidence: 0.90},
	}
	var result proposal.ConsensusResult
	for _, vote := range votes {
		result, err = service.SubmitVote(ctx, vote)
		if err != nil {
			t.Fatalf("vote by %s: %v", vote.ReviewerID, err)
		}
	}
	if !result.Reached {
		t.Fatalf("consensus not reached: %+v", result)
	}

	if got := service.BalanceOf("creator"); got != 100 {
		t.Errorf("creator balance after payout = %d, want 100", got)
	}
	if got := service.TotalSupply(); got != 100 {
		t.Errorf("total supply = %d, want 100", got)
	}
	if err := service.VerifyChain(ctx); err != nil {
		t.Fatalf("verify chain: %v", err)
	}

	// Genesis, mint, escrow transfer, payout.
	events, err := service.Events(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	wantTypes := []event.Type{event.TypeMint, event.TypeTransfer, event.TypePayout}
	if len(events) != len(wantTypes) {
		t.Fatalf("events after genesis = %d, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d type = %q, want %q", i+1, events[i].Type, want)
		}
	}

	stored, err := service.Proposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if stored.State != proposal.StateResolved {
		t.Errorf("state = %q, want %q", stored.State, proposal.StateResolved)
	}
	recorded, err := service.Votes(ctx, p.ID)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(recorded) != 3 {
		t.Errorf("votes = %d, want 3", len(recorded))
	}
}

func TestRestartReplaysBalances(t *testing.T) {
	store := memory.NewStore()
	service := newTestService(t, store)
	ctx := context.Background()

	if _, err := service.Mint(ctx, "alice", 100, ""); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := service.Transfer(ctx, "alice", "bob", 30, ""); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := service.Burn(ctx, "bob", 10, ""); err != nil {
		t.Fatalf("burn: %v", err)
	}

	restarted := newTestService(t, store)
	if got := restarted.BalanceOf("alice"); got != 70 {
		t.Errorf("alice balance after restart = %d, want 70", got)
	}
	if got := restarted.BalanceOf("bob"); got != 20 {
		t.Errorf("bob balance after restart = %d, want 20", got)
	}
	if got := restarted.TotalSupply(); got != 90 {
		t.Errorf("total supply after restart = %d, want 90", got)
	}
}

func TestRejectedProposalRefunds(t *testing.T) {
	store := memory.NewStore()
	service := newTestService(t, store)
	ctx := context.Background()

	if _, err := service.Mint(ctx, "creator", 50, ""); err != nil {
		t.Fatalf("mint: %v", err)
	}
	p, err := service.SubmitProposal(ctx, "creator", 50, "")
	if err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	if err := service.RejectProposal(ctx, p.ID, "duplicate work"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := service.BalanceOf("creator"); got != 50 {
		t.Errorf("creator balance after refund = %d, want 50", got)
	}

	_, err = service.SubmitVote(ctx, proposal.Vote{ProposalID: p.ID, ReviewerID: "rev-1", Kind: proposal.KindApprove, Confidence: 0.9})
	if !errors.IsCode(err, errors.CodeProposalNotOpen) {
		t.Errorf("vote after rejection error = %v, want PROPOSAL_NOT_OPEN", err)
	}
}

func TestStartupFailsOnTamperedChain(t *testing.T) {
	store := memory.NewStore()
	service := newTestService(t, store)
	ctx := context.Background()
	if _, err := service.Mint(ctx, "alice", 100, ""); err != nil {
		t.Fatalf("mint: %v", err)
	}

	store.TamperEvent(1, func(evt *event.Event) {
		evt.PayloadJSON = []byte(`{"account":"alice","amount":900}`)
	})

	if _, err := New(ctx, store, consensus.DefaultConfig()); err == nil {
		t.Fatal("expected startup to fail on tampered chain")
	}
}
