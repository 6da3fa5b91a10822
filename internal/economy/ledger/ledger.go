// Package ledger implements the append-only, hash-chained event log that is
// the single source of truth for every economic fact.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openclearing/bountyledger/internal/economy/domain/account"
	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/integrity"
	"github.com/openclearing/bountyledger/internal/economy/storage"
	apperrors "github.com/openclearing/bountyledger/internal/platform/errors"
)

const pageSize = 200

// DefaultLedgerID scopes signature key derivation when hosts run a single
// chain.
const DefaultLedgerID = "main"

// Ledger owns sequencing and sealing of chain events. All writes flow
// through a single mutex; the lock is held only for hash computation and
// the store append, never for external calls.
type Ledger struct {
	mu       sync.Mutex
	store    storage.LedgerStore
	registry *event.Registry
	keyring  *integrity.Keyring
	ledgerID string
	now      func() time.Time

	nextSeq       uint64
	lastChainHash string
	bootstrapped  bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithKeyring enables HMAC signing of every appended chain hash.
func WithKeyring(keyring *integrity.Keyring) Option {
	return func(l *Ledger) { l.keyring = keyring }
}

// WithLedgerID overrides the id used for signature key derivation.
func WithLedgerID(id string) Option {
	return func(l *Ledger) { l.ledgerID = id }
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New constructs a Ledger over the given store. Call Bootstrap before any
// append.
func New(store storage.LedgerStore, registry *event.Registry, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		registry: registry,
		ledgerID: DefaultLedgerID,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Bootstrap loads the chain head, appending the genesis event first if the
// chain is empty. It is called once at startup.
func (l *Ledger) Bootstrap(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.bootstrapped {
		return fmt.Errorf("ledger is already bootstrapped")
	}

	latest, err := l.store.LatestSeq(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load chain head: %w", err)
		}
		genesis, err := event.New(event.GenesisPayload{Note: "genesis"})
		if err != nil {
			return err
		}
		sealed, err := l.seal(genesis, 0, event.GenesisPrevHash)
		if err != nil {
			return err
		}
		if err := l.append(ctx, sealed); err != nil {
			return err
		}
		l.bootstrapped = true
		return nil
	}

	head, err := l.store.GetEventBySeq(ctx, latest)
	if err != nil {
		return fmt.Errorf("load chain head event: %w", err)
	}
	l.nextSeq = head.Seq + 1
	l.lastChainHash = head.ChainHash
	l.bootstrapped = true
	return nil
}

// Append seals the payload into the next chain position and persists it.
// Genesis cannot be appended; it exists only through Bootstrap.
func (l *Ledger) Append(ctx context.Context, payload event.Payload) (event.Event, error) {
	evt, err := event.New(payload)
	if err != nil {
		return event.Event{}, err
	}
	if evt.IsGenesis() {
		return event.Event{}, apperrors.New(apperrors.CodeEventInvalid, "genesis may only be appended by bootstrap")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.bootstrapped {
		return event.Event{}, fmt.Errorf("ledger is not bootstrapped")
	}

	sealed, err := l.seal(evt, l.nextSeq, l.lastChainHash)
	if err != nil {
		return event.Event{}, err
	}
	if err := l.append(ctx, sealed); err != nil {
		return event.Event{}, err
	}
	return sealed, nil
}

// seal assigns sequence, timestamp, hashes, and signature. Caller holds the
// lock.
func (l *Ledger) seal(evt event.Event, seq uint64, prevHash string) (event.Event, error) {
	evt.Seq = seq
	evt.Timestamp = l.now().UTC().Truncate(time.Millisecond)
	evt.PrevHash = prevHash

	validated, err := l.registry.ValidateForAppend(evt)
	if err != nil {
		return event.Event{}, err
	}
	evt = validated

	hash, err := event.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash

	chainHash, err := event.ChainHash(evt, prevHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.ChainHash = chainHash

	if l.keyring != nil {
		signature, keyID, err := l.keyring.SignChainHash(l.ledgerID, chainHash)
		if err != nil {
			return event.Event{}, fmt.Errorf("sign chain hash: %w", err)
		}
		evt.Signature = signature
		evt.SignatureKeyID = keyID
	}
	return evt, nil
}

// append persists a sealed event and advances the cached head. Caller holds
// the lock.
func (l *Ledger) append(ctx context.Context, evt event.Event) error {
	if err := l.store.AppendEvent(ctx, evt); err != nil {
		if errors.Is(err, storage.ErrSeqTaken) {
			// Single-writer sequencing makes this unreachable; if it
			// fires, the contract is broken and we fail loudly.
			return apperrors.WithMetadata(apperrors.CodeChainWriteConflict,
				"concurrent append raced ahead of the ledger writer",
				map[string]string{"at_sequence": fmt.Sprintf("%d", evt.Seq)})
		}
		return fmt.Errorf("append event: %w", err)
	}
	l.nextSeq = evt.Seq + 1
	l.lastChainHash = evt.ChainHash
	return nil
}

// VerifyChain walks the chain from genesis, recomputing every hash and
// checking each link against its predecessor. It reports the first
// mismatched sequence number. Appends construct these hashes themselves,
// so the walk exists to detect external tampering with persisted storage.
func (l *Ledger) VerifyChain(ctx context.Context) error {
	prevChainHash := ""
	expectSeq := uint64(0)
	afterSet := false
	var afterSeq uint64

	for {
		var events []event.Event
		var err error
		if !afterSet {
			// The genesis event has Seq 0, which an afterSeq cursor
			// cannot address; fetch it directly.
			genesis, err := l.store.GetEventBySeq(ctx, 0)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return violation(0, "genesis event is missing")
				}
				return fmt.Errorf("load genesis: %w", err)
			}
			events = []event.Event{genesis}
			afterSet = true
		} else {
			events, err = l.store.ListEvents(ctx, afterSeq, pageSize)
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}
			if len(events) == 0 {
				return nil
			}
		}

		for _, evt := range events {
			if evt.Seq != expectSeq {
				return violation(expectSeq, fmt.Sprintf("sequence gap: got %d", evt.Seq))
			}

			wantPrev := prevChainHash
			if evt.Seq == 0 {
				if !evt.IsGenesis() {
					return violation(0, "first event is not genesis")
				}
				wantPrev = event.GenesisPrevHash
			}
			if evt.PrevHash != wantPrev {
				return violation(evt.Seq, "previous hash does not match predecessor")
			}

			hash, err := event.EventHash(evt)
			if err != nil {
				return violation(evt.Seq, "event is not hashable: "+err.Error())
			}
			if hash != evt.Hash {
				return violation(evt.Seq, "event hash mismatch")
			}

			chainHash, err := event.ChainHash(evt, wantPrev)
			if err != nil {
				return violation(evt.Seq, "chain hash not computable: "+err.Error())
			}
			if chainHash != evt.ChainHash {
				return violation(evt.Seq, "chain hash mismatch")
			}

			if l.keyring != nil {
				// A missing signature is itself a violation: a tamperer
				// who rewrites events and recomputes hashes must not be
				// able to pass verification by stripping signatures.
				if strings.TrimSpace(evt.Signature) == "" {
					return violation(evt.Seq, "chain hash is unsigned")
				}
				if err := l.keyring.VerifyChainHash(l.ledgerID, evt.ChainHash, evt.Signature, evt.SignatureKeyID); err != nil {
					return violation(evt.Seq, "chain hash signature invalid")
				}
			}

			prevChainHash = evt.ChainHash
			afterSeq = evt.Seq
			expectSeq = evt.Seq + 1
		}
	}
}

// Replay folds every chain event into a fresh account store. It initializes
// the live projection at startup and doubles as the audit oracle: the
// result must match the incrementally maintained store exactly.
func (l *Ledger) Replay(ctx context.Context) (*account.Store, error) {
	accounts := account.NewStore()

	genesis, err := l.store.GetEventBySeq(ctx, 0)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return accounts, nil
		}
		return nil, fmt.Errorf("load genesis: %w", err)
	}
	afterSeq := genesis.Seq

	for {
		events, err := l.store.ListEvents(ctx, afterSeq, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			return accounts, nil
		}
		for _, evt := range events {
			if err := accounts.Apply(evt); err != nil {
				return nil, err
			}
			afterSeq = evt.Seq
		}
	}
}

func violation(seq uint64, message string) error {
	return apperrors.WithMetadata(apperrors.CodeChainIntegrityViolation,
		message,
		map[string]string{"at_sequence": fmt.Sprintf("%d", seq)})
}
