package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/ledger"
	"github.com/openclearing/bountyledger/internal/economy/storage/memory"
	"github.com/openclearing/bountyledger/internal/platform/errors"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	led := ledger.New(store, event.NewEconomyRegistry())
	if err := led.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	accounts, err := led.Replay(context.Background())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	return New(led, accounts, store), store
}

func TestMintThenTransfer(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.Mint(ctx, "alice", 100, "grant"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := coord.Transfer(ctx, "alice", "bob", 30, "services"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := coord.Accounts().BalanceOf("alice"); got != 70 {
		t.Errorf("alice balance = %d, want 70", got)
	}
	if got := coord.Accounts().BalanceOf("bob"); got != 30 {
		t.Errorf("bob balance = %d, want 30", got)
	}
}

func TestTransferFromUnknownAccount(t *testing.T) {
	coord, store := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Transfer(ctx, "ghost", "bob", 10, "")
	if !errors.IsCode(err, errors.CodeUnknownAccount) {
		t.Fatalf("transfer error = %v, want UNKNOWN_ACCOUNT", err)
	}
	// Nothing appended.
	seq, err := store.LatestSeq(ctx)
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if seq != 0 {
		t.Errorf("latest seq = %d, want 0 (genesis only)", seq)
	}
}

func TestTransferInsufficientFundsIsAtomic(t *testing.T) {
	coord, store := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.Mint(ctx, "alice", 20, ""); err != nil {
		t.Fatalf("mint: %v", err)
	}
	before, _ := store.LatestSeq(ctx)

	_, err := coord.Transfer(ctx, "alice", "bob", 50, "")
	if !errors.IsCode(err, errors.CodeInsufficientFunds) {
		t.Fatalf("transfer error = %v, want INSUFFICIENT_FUNDS", err)
	}

	after, _ := store.LatestSeq(ctx)
	if after != before {
		t.Errorf("latest seq moved from %d to %d on failed transfer", before, after)
	}
	if got := coord.Accounts().BalanceOf("alice"); got != 20 {
		t.Errorf("alice balance = %d, want 20", got)
	}
	if got := coord.Accounts().BalanceOf("bob"); got != 0 {
		t.Errorf("bob balance = %d, want 0", got)
	}
}

func TestTransferRejectsSelfTransfer(t *testing.T) {
	coord, store := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.Mint(ctx, "alice", 100, ""); err != nil {
		t.Fatalf("mint: %v", err)
	}
	before, _ := store.LatestSeq(ctx)

	_, err := coord.Transfer(ctx, "alice", "alice", 10, "round trip")
	if !errors.IsCode(err, errors.CodeTransferSelf) {
		t.Fatalf("transfer error = %v, want TRANSFER_SELF", err)
	}

	// No event appended, and the audit counters did not move.
	after, _ := store.LatestSeq(ctx)
	if after != before {
		t.Errorf("latest seq moved from %d to %d on self-transfer", before, after)
	}
	alice, ok := coord.Accounts().Get("alice")
	if !ok {
		t.Fatal("alice missing from projection")
	}
	if alice.Balance != 100 {
		t.Errorf("alice balance = %d, want 100", alice.Balance)
	}
	if alice.TotalSpent != 0 {
		t.Errorf("alice total spent = %d, want 0", alice.TotalSpent)
	}
	if alice.TotalEarned != 100 {
		t.Errorf("alice total earned = %d, want 100", alice.TotalEarned)
	}
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	for _, amount := range []int64{0, -5} {
		_, err := coord.Transfer(context.Background(), "alice", "bob", amount, "")
		if !errors.IsCode(err, errors.CodeAmountNotPositive) {
			t.Errorf("Transfer(amount=%d) error = %v, want AMOUNT_NOT_POSITIVE", amount, err)
		}
	}
}

func TestBurnReducesSupply(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	if _, err := coord.Mint(ctx, "alice", 100, ""); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := coord.Burn(ctx, "alice", 40, "penalty"); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := coord.Accounts().TotalBalance(); got != 60 {
		t.Errorf("total balance = %d, want 60", got)
	}

	_, err := coord.Burn(ctx, "alice", 100, "over")
	if !errors.IsCode(err, errors.CodeInsufficientFunds) {
		t.Fatalf("over-burn error = %v, want INSUFFICIENT_FUNDS", err)
	}
}

func fundedProposal(t *testing.T, coord *Coordinator, store *memory.Store, bounty int64) proposal.Proposal {
	t.Helper()
	ctx := context.Background()
	if _, err := coord.Mint(ctx, "creator", bounty, "grant"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	p := proposal.Proposal{
		ID:        "prop-1",
		Creator:   "creator",
		Bounty:    bounty,
		State:     proposal.StateProposed,
		CreatedAt: time.Now(),
	}
	if err := store.PutProposal(ctx, p); err != nil {
		t.Fatalf("put proposal: %v", err)
	}
	if _, err := coord.Transfer(ctx, "creator", event.EscrowAccount(p.ID), bounty, "bounty escrow"); err != nil {
		t.Fatalf("fund escrow: %v", err)
	}
	return p
}

func TestPayoutMovesEscrowToCreator(t *testing.T) {
	coord, store := newTestCoordinator(t)
	ctx := context.Background()
	p := fundedProposal(t, coord, store, 40)

	evt, err := coord.PayoutFor(ctx, p.ID)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if evt.Type != event.TypePayout {
		t.Errorf("event type = %q, want %q", evt.Type, event.TypePayout)
	}
	if got := coord.Accounts().BalanceOf("creator"); got != 40 {
		t.Errorf("creator balance = %d, want 40", got)
	}
	if got := coord.Accounts().BalanceOf(event.EscrowAccount(p.ID)); got != 0 {
		t.Errorf("escrow balance = %d, want 0", got)
	}

	stored, err := store.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if stored.State != proposal.StateResolved {
		t.Errorf("state = %q, want %q", stored.State, proposal.StateResolved)
	}
	if !stored.Resolved {
		t.Error("proposal not marked resolved")
	}
}

func TestPayoutIsAtMostOnce(t *testing.T) {
	coord, store := newTestCoordinator(t)
	ctx := context.Background()
	p := fundedProposal(t, coord, store, 40)

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = coord.PayoutFor(ctx, p.ID)
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.IsCode(err, errors.CodeProposalAlreadyResolved):
			losses++
		default:
			t.Fatalf("unexpected payout error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("payouts succeeded %d times, want exactly 1", wins)
	}
	if losses != attempts-1 {
		t.Errorf("already-resolved losses = %d, want %d", losses, attempts-1)
	}
	if got := coord.Accounts().BalanceOf("creator"); got != 40 {
		t.Errorf("creator balance = %d, want 40 (single payout)", got)
	}
}

func TestPayoutUnknownProposal(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	_, err := coord.PayoutFor(context.Background(), "nope")
	if !errors.IsCode(err, errors.CodeProposalNotFound) {
		t.Fatalf("payout error = %v, want PROPOSAL_NOT_FOUND", err)
	}
}
