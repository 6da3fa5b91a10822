// Package account maintains the balance projection derived from the ledger.
//
// The store is a materialized, replayable cache: it is only ever mutated by
// folding ledger events, either incrementally through the transaction
// coordinator or from scratch via ledger replay. No other caller applies
// events.
package account

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/platform/errors"
)

// Account is the projected state of one identity. Balances are integer
// minor units and never negative. TotalEarned and TotalSpent are derived
// audit counters, not authoritative.
type Account struct {
	ID          string
	Balance     int64
	TotalEarned int64
	TotalSpent  int64
}

// Store holds current balances per account. Accounts are created implicitly
// on first credit.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewStore constructs an empty balance projection.
func NewStore() *Store {
	return &Store{accounts: make(map[string]*Account)}
}

// BalanceOf returns the current balance, 0 for unknown accounts.
func (s *Store) BalanceOf(account string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acct, ok := s.accounts[account]; ok {
		return acct.Balance
	}
	return 0
}

// Known reports whether the account has ever been credited.
func (s *Store) Known(account string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[account]
	return ok
}

// CanDebit reports whether the account holds at least amount.
func (s *Store) CanDebit(account string, amount int64) bool {
	if amount <= 0 {
		return false
	}
	return s.BalanceOf(account) >= amount
}

// Get returns the full projected record for an account.
func (s *Store) Get(account string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acct, ok := s.accounts[account]; ok {
		return *acct, true
	}
	return Account{}, false
}

// Apply folds one ledger event into the projection. Only the transaction
// coordinator and ledger replay call Apply; the event must already be part
// of the chain.
func (s *Store) Apply(evt event.Event) error {
	payload, err := event.DecodePayload(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch p := payload.(type) {
	case event.GenesisPayload:
		return nil
	case event.MintPayload:
		s.credit(p.Account, p.Amount)
		return nil
	case event.TransferPayload:
		if err := s.debit(p.From, p.Amount, evt.Seq); err != nil {
			return err
		}
		s.credit(p.To, p.Amount)
		return nil
	case event.PayoutPayload:
		if err := s.debit(event.EscrowAccount(p.ProposalID), p.Amount, evt.Seq); err != nil {
			return err
		}
		s.credit(p.To, p.Amount)
		return nil
	case event.BurnPayload:
		return s.debit(p.Account, p.Amount, evt.Seq)
	default:
		return errors.New(errors.CodeEventInvalid, fmt.Sprintf("unhandled payload variant %T", p))
	}
}

// Snapshot returns a copy of every account, ordered by ID. Replay of the
// full ledger must produce a snapshot identical to the live store's.
func (s *Store) Snapshot() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TotalBalance sums every account balance, for conservation audits.
func (s *Store) TotalBalance() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, acct := range s.accounts {
		total += acct.Balance
	}
	return total
}

func (s *Store) credit(account string, amount int64) {
	acct, ok := s.accounts[account]
	if !ok {
		acct = &Account{ID: account}
		s.accounts[account] = acct
	}
	acct.Balance += amount
	acct.TotalEarned += amount
}

// debit fails if the account is unknown or short; a valid chain never
// produces either case, so a failure here means the projection and the
// ledger have diverged.
func (s *Store) debit(account string, amount int64, seq uint64) error {
	acct, ok := s.accounts[account]
	if !ok {
		return errors.WithMetadata(errors.CodeLedgerInconsistent,
			fmt.Sprintf("debit of unknown account %q", account),
			map[string]string{"at_sequence": fmt.Sprintf("%d", seq)})
	}
	if acct.Balance < amount {
		return errors.WithMetadata(errors.CodeLedgerInconsistent,
			fmt.Sprintf("debit overdraws account %q", account),
			map[string]string{"at_sequence": fmt.Sprintf("%d", seq)})
	}
	acct.Balance -= amount
	acct.TotalSpent += amount
	return nil
}
