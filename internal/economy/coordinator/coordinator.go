// Package coordinator applies economic operations as atomic units: either
// the ledger gains a new event and the balance projection reflects it, or
// neither happens.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/openclearing/bountyledger/internal/economy/domain/account"
	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/ledger"
	"github.com/openclearing/bountyledger/internal/economy/storage"
	"github.com/openclearing/bountyledger/internal/platform/errors"
)

// Coordinator owns the ledger and the live balance projection. Every
// state-changing operation passes through its mutex, which is the single
// serialization point for mint, transfer, and payout. The lock covers
// validate + append + apply and nothing else; no I/O beyond the store
// happens inside it.
type Coordinator struct {
	mu        sync.Mutex
	ledger    *ledger.Ledger
	accounts  *account.Store
	proposals storage.ProposalStore
}

// New constructs a Coordinator. The accounts store must be the replay of
// the ledger's current chain.
func New(led *ledger.Ledger, accounts *account.Store, proposals storage.ProposalStore) *Coordinator {
	return &Coordinator{
		ledger:    led,
		accounts:  accounts,
		proposals: proposals,
	}
}

// Accounts returns the live balance projection. Callers get read access
// only; mutation happens exclusively through event application here.
func (c *Coordinator) Accounts() *account.Store {
	return c.accounts
}

// Mint issues new tokens to an account. Reserved for system-originated
// issuance; hosts must not expose it to arbitrary user input.
func (c *Coordinator) Mint(ctx context.Context, acct string, amount int64, reason string) (event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, event.MintPayload{Account: acct, Amount: amount, Reason: reason})
}

// Burn removes tokens from circulation.
func (c *Coordinator) Burn(ctx context.Context, acct string, amount int64, reason string) (event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accounts.Known(acct) {
		return event.Event{}, errors.New(errors.CodeUnknownAccount, fmt.Sprintf("account %q has no ledger history", acct))
	}
	if !c.accounts.CanDebit(acct, amount) {
		return event.Event{}, errors.New(errors.CodeInsufficientFunds, "burn exceeds balance")
	}
	return c.commit(ctx, event.BurnPayload{Account: acct, Amount: amount, Reason: reason})
}

// Transfer moves value between accounts. On InsufficientFunds or
// UnknownAccount nothing is appended and no balance changes (atomic-fail).
func (c *Coordinator) Transfer(ctx context.Context, from, to string, amount int64, reason string) (event.Event, error) {
	if amount <= 0 {
		return event.Event{}, errors.New(errors.CodeAmountNotPositive, "amount must be positive")
	}
	if from == to {
		// A self-transfer would append a no-op event while still bumping
		// the earned/spent counters, so it is rejected outright.
		return event.Event{}, errors.New(errors.CodeTransferSelf, "transfer source and destination are the same account")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accounts.Known(from) {
		return event.Event{}, errors.New(errors.CodeUnknownAccount, fmt.Sprintf("account %q has no ledger history", from))
	}
	if !c.accounts.CanDebit(from, amount) {
		return event.Event{}, errors.New(errors.CodeInsufficientFunds,
			fmt.Sprintf("account %q holds %d, needs %d", from, c.accounts.BalanceOf(from), amount))
	}
	return c.commit(ctx, event.TransferPayload{From: from, To: to, Amount: amount, Reason: reason})
}

// PayoutFor executes the bounty payout for a proposal. The compare-and-set
// on the proposal's resolved flag happens under the same critical section
// as the ledger append, so a proposal pays out at most once no matter how
// many concurrent consensus evaluations request it. Losing the race is
// reported as PROPOSAL_ALREADY_RESOLVED, which callers treat as the
// expected outcome, not a failure.
func (c *Coordinator) PayoutFor(ctx context.Context, proposalID string) (event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		if err == storage.ErrNotFound {
			return event.Event{}, errors.New(errors.CodeProposalNotFound, fmt.Sprintf("proposal %q not found", proposalID))
		}
		return event.Event{}, fmt.Errorf("load proposal: %w", err)
	}
	if p.Resolved {
		return event.Event{}, errors.New(errors.CodeProposalAlreadyResolved, "proposal is already resolved")
	}

	escrow := event.EscrowAccount(p.ID)
	if !c.accounts.CanDebit(escrow, p.Bounty) {
		// The escrow was funded at submission, so a shortfall means the
		// chain and projection no longer agree. Fatal to this proposal;
		// manual resolution required.
		if stateErr := c.proposals.SetState(ctx, p.ID, proposal.StatePayoutFailed); stateErr != nil {
			return event.Event{}, fmt.Errorf("mark payout failed: %w", stateErr)
		}
		return event.Event{}, errors.WithMetadata(errors.CodePayoutFailed,
			fmt.Sprintf("escrow for proposal %q holds %d, bounty is %d", p.ID, c.accounts.BalanceOf(escrow), p.Bounty),
			map[string]string{"proposal_id": p.ID})
	}

	claimed, err := c.proposals.ClaimResolution(ctx, p.ID)
	if err != nil {
		return event.Event{}, fmt.Errorf("claim resolution: %w", err)
	}
	if !claimed {
		return event.Event{}, errors.New(errors.CodeProposalAlreadyResolved, "proposal is already resolved")
	}

	evt, err := c.commit(ctx, event.PayoutPayload{ProposalID: p.ID, To: p.Creator, Amount: p.Bounty})
	if err != nil {
		// The resolution claim is already durable; retrying the append
		// could double-pay, so the proposal is parked for manual
		// reconciliation instead.
		if stateErr := c.proposals.SetState(ctx, p.ID, proposal.StatePayoutFailed); stateErr != nil {
			return event.Event{}, fmt.Errorf("mark payout failed after append error: %v (append: %w)", stateErr, err)
		}
		return event.Event{}, errors.Wrap(errors.CodePayoutFailed, "payout append failed after resolution claim", err)
	}

	if err := c.proposals.SetState(ctx, p.ID, proposal.StateResolved); err != nil {
		return event.Event{}, fmt.Errorf("mark resolved: %w", err)
	}
	return evt, nil
}

// commit appends the payload and folds it into the projection. Caller
// holds the mutex. An apply failure after a successful append means the
// ledger and the projection have diverged; that is surfaced as a fatal
// inconsistency, never swallowed.
func (c *Coordinator) commit(ctx context.Context, payload event.Payload) (event.Event, error) {
	evt, err := c.ledger.Append(ctx, payload)
	if err != nil {
		return event.Event{}, err
	}
	if err := c.accounts.Apply(evt); err != nil {
		return event.Event{}, errors.Wrap(errors.CodeLedgerInconsistent,
			fmt.Sprintf("event %d appended but not applied; reconciliation required", evt.Seq), err)
	}
	return evt, nil
}
