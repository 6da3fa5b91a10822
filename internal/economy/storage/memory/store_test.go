package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/storage"
)

func storedEvent(seq uint64) event.Event {
	return event.Event{
		Seq:         seq,
		Timestamp:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:        event.TypeMint,
		Hash:        "hash",
		PrevHash:    "prev",
		ChainHash:   "chain",
		PayloadJSON: []byte(`{"account":"a","amount":1}`),
	}
}

func TestAppendEventRejectsTakenSeq(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.AppendEvent(ctx, storedEvent(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := store.AppendEvent(ctx, storedEvent(0))
	if !errors.Is(err, storage.ErrSeqTaken) {
		t.Fatalf("err = %v, want ErrSeqTaken", err)
	}
}

func TestListEventsRespectsAfterSeqAndLimit(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for seq := uint64(0); seq < 4; seq++ {
		if err := store.AppendEvent(ctx, storedEvent(seq)); err != nil {
			t.Fatalf("append %d: %v", seq, err)
		}
	}

	page, err := store.ListEvents(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page length = %d, want 2", len(page))
	}
	if page[0].Seq != 2 || page[1].Seq != 3 {
		t.Fatalf("page seqs = %d,%d, want 2,3", page[0].Seq, page[1].Seq)
	}
}

func TestLatestSeq(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.LatestSeq(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	for seq := uint64(0); seq < 3; seq++ {
		if err := store.AppendEvent(ctx, storedEvent(seq)); err != nil {
			t.Fatalf("append %d: %v", seq, err)
		}
	}
	latest, err := store.LatestSeq(ctx)
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if latest != 2 {
		t.Fatalf("latest = %d, want 2", latest)
	}
}

func TestClaimResolutionIsOneShot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.PutProposal(ctx, proposal.Proposal{ID: "p1", State: proposal.StateUnderReview}); err != nil {
		t.Fatalf("put proposal: %v", err)
	}

	claimed, err := store.ClaimResolution(ctx, "p1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to win")
	}
	claimed, err = store.ClaimResolution(ctx, "p1")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("expected second claim to lose")
	}

	if _, err := store.ClaimResolution(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutVoteDeduplicatesReviewer(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	vote := proposal.Vote{ProposalID: "p1", ReviewerID: "r1", Kind: proposal.KindApprove, Confidence: 0.9}

	if err := store.PutVote(ctx, vote); err != nil {
		t.Fatalf("put vote: %v", err)
	}
	err := store.PutVote(ctx, vote)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}

	other := vote
	other.ReviewerID = "r2"
	if err := store.PutVote(ctx, other); err != nil {
		t.Fatalf("put second vote: %v", err)
	}

	votes, err := store.ListVotes(ctx, "p1")
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 2 {
		t.Fatalf("votes = %d, want 2", len(votes))
	}
	if votes[0].ReviewerID != "r1" || votes[1].ReviewerID != "r2" {
		t.Fatalf("vote order = %v", votes)
	}
}

func TestSetStateTerminalIsSticky(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.PutProposal(ctx, proposal.Proposal{ID: "p1", Creator: "c", Bounty: 10, State: proposal.StateUnderReview}); err != nil {
		t.Fatalf("put proposal: %v", err)
	}

	if err := store.SetState(ctx, "p1", proposal.StateResolved); err != nil {
		t.Fatalf("set resolved: %v", err)
	}
	if err := store.SetState(ctx, "p1", proposal.StateConsensusReached); err != nil {
		t.Fatalf("set after terminal: %v", err)
	}

	p, err := store.GetProposal(ctx, "p1")
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if p.State != proposal.StateResolved {
		t.Fatalf("state = %q, want %q (terminal states are sticky)", p.State, proposal.StateResolved)
	}
}
