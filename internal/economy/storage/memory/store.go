// Package memory provides an in-memory store for tests and ephemeral
// hosts. The chain is kept unsigned; durable deployments use the sqlite
// store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/storage"
)

// Store implements every storage interface with mutex-guarded maps.
type Store struct {
	mu        sync.RWMutex
	events    map[uint64]event.Event
	proposals map[string]proposal.Proposal
	votes     map[string][]proposal.Vote
	voters    map[string]map[string]bool
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		events:    make(map[uint64]event.Event),
		proposals: make(map[string]proposal.Proposal),
		votes:     make(map[string][]proposal.Vote),
		voters:    make(map[string]map[string]bool),
	}
}

// AppendEvent implements storage.LedgerStore.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[evt.Seq]; ok {
		return storage.ErrSeqTaken
	}
	s.events[evt.Seq] = evt
	return nil
}

// GetEventBySeq implements storage.LedgerStore.
func (s *Store) GetEventBySeq(ctx context.Context, seq uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	evt, ok := s.events[seq]
	if !ok {
		return event.Event{}, storage.ErrNotFound
	}
	return evt, nil
}

// ListEvents implements storage.LedgerStore.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seqs := make([]uint64, 0, len(s.events))
	for seq := range s.events {
		if seq > afterSeq {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	if limit > 0 && len(seqs) > limit {
		seqs = seqs[:limit]
	}

	out := make([]event.Event, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, s.events[seq])
	}
	return out, nil
}

// LatestSeq implements storage.LedgerStore.
func (s *Store) LatestSeq(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return 0, storage.ErrNotFound
	}
	var latest uint64
	for seq := range s.events {
		if seq > latest {
			latest = seq
		}
	}
	return latest, nil
}

// TamperEvent overwrites a stored event in place, bypassing the chain.
// It exists so integrity tests can simulate external mutation of storage.
func (s *Store) TamperEvent(seq uint64, mutate func(*event.Event)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt, ok := s.events[seq]
	if !ok {
		return false
	}
	mutate(&evt)
	s.events[seq] = evt
	return true
}

// PutProposal implements storage.ProposalStore.
func (s *Store) PutProposal(ctx context.Context, p proposal.Proposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ID] = p
	return nil
}

// GetProposal implements storage.ProposalStore.
func (s *Store) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return proposal.Proposal{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return proposal.Proposal{}, storage.ErrNotFound
	}
	return p, nil
}

// SetState implements storage.ProposalStore.
func (s *Store) SetState(ctx context.Context, id string, state proposal.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return storage.ErrNotFound
	}
	if p.State.Terminal() {
		return nil
	}
	p.State = state
	s.proposals[id] = p
	return nil
}

// ClaimResolution implements storage.ProposalStore.
func (s *Store) ClaimResolution(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if p.Resolved {
		return false, nil
	}
	p.Resolved = true
	s.proposals[id] = p
	return true, nil
}

// PutVote implements storage.VoteStore.
func (s *Store) PutVote(ctx context.Context, v proposal.Vote) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	voters := s.voters[v.ProposalID]
	if voters == nil {
		voters = make(map[string]bool)
		s.voters[v.ProposalID] = voters
	}
	if voters[v.ReviewerID] {
		return storage.ErrAlreadyExists
	}
	voters[v.ReviewerID] = true
	s.votes[v.ProposalID] = append(s.votes[v.ProposalID], v)
	return nil
}

// ListVotes implements storage.VoteStore.
func (s *Store) ListVotes(ctx context.Context, proposalID string) ([]proposal.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := s.votes[proposalID]
	out := make([]proposal.Vote, len(votes))
	copy(out, votes)
	return out, nil
}
