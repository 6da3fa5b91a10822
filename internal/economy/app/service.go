// Package app wires the economy runtime: chain bootstrap, balance replay,
// the transaction coordinator, and the consensus engine behind one facade.
package app

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openclearing/bountyledger/internal/economy/consensus"
	"github.com/openclearing/bountyledger/internal/economy/coordinator"
	"github.com/openclearing/bountyledger/internal/economy/domain/account"
	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/ledger"
	"github.com/openclearing/bountyledger/internal/economy/storage"
)

const tracerName = "bountyledger/economy"

// Service is the economy runtime facade. All host surfaces (CLI tools,
// RPC handlers) talk to the economy through it.
type Service struct {
	store  storage.Store
	ledger *ledger.Ledger
	coord  *coordinator.Coordinator
	engine *consensus.Engine
	tracer trace.Tracer
}

// New bootstraps the chain from the store, replays balances, and wires
// the coordinator and consensus engine. The ledger options control
// signing and ledger identity.
func New(ctx context.Context, store storage.Store, cfg consensus.Config, ledgerOpts ...ledger.Option) (*Service, error) {
	led := ledger.New(store, event.NewEconomyRegistry(), ledgerOpts...)
	if err := led.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap ledger: %w", err)
	}
	if err := led.VerifyChain(ctx); err != nil {
		return nil, fmt.Errorf("verify chain at startup: %w", err)
	}
	accounts, err := led.Replay(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay balances: %w", err)
	}
	log.Printf("economy: chain verified, %d accounts, total supply %d",
		len(accounts.Snapshot()), accounts.TotalBalance())

	coord := coordinator.New(led, accounts, store)
	return &Service{
		store:  store,
		ledger: led,
		coord:  coord,
		engine: consensus.New(cfg, coord, store, store),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Mint issues tokens to an account. Host-level authorization is the
// caller's responsibility.
func (s *Service) Mint(ctx context.Context, acct string, amount int64, reason string) (event.Event, error) {
	ctx, span := s.tracer.Start(ctx, "economy.mint",
		trace.WithAttributes(attribute.String("account", acct), attribute.Int64("amount", amount)))
	defer span.End()
	evt, err := s.coord.Mint(ctx, acct, amount, reason)
	if err != nil {
		span.RecordError(err)
	}
	return evt, err
}

// Burn removes tokens from circulation.
func (s *Service) Burn(ctx context.Context, acct string, amount int64, reason string) (event.Event, error) {
	ctx, span := s.tracer.Start(ctx, "economy.burn",
		trace.WithAttributes(attribute.String("account", acct), attribute.Int64("amount", amount)))
	defer span.End()
	evt, err := s.coord.Burn(ctx, acct, amount, reason)
	if err != nil {
		span.RecordError(err)
	}
	return evt, err
}

// Transfer moves value between two accounts.
func (s *Service) Transfer(ctx context.Context, from, to string, amount int64, reason string) (event.Event, error) {
	ctx, span := s.tracer.Start(ctx, "economy.transfer",
		trace.WithAttributes(attribute.Int64("amount", amount)))
	defer span.End()
	evt, err := s.coord.Transfer(ctx, from, to, amount, reason)
	if err != nil {
		span.RecordError(err)
	}
	return evt, err
}

// SubmitProposal registers a bounty proposal and escrows its bounty.
func (s *Service) SubmitProposal(ctx context.Context, creator string, bounty int64, metadata string) (proposal.Proposal, error) {
	ctx, span := s.tracer.Start(ctx, "economy.submit_proposal",
		trace.WithAttributes(attribute.Int64("bounty", bounty)))
	defer span.End()
	p, err := s.engine.SubmitProposal(ctx, creator, bounty, metadata)
	if err != nil {
		span.RecordError(err)
		return p, err
	}
	span.SetAttributes(attribute.String("proposal_id", p.ID))
	return p, nil
}

// SubmitVote records a reviewer vote and returns the resulting quorum
// evaluation.
func (s *Service) SubmitVote(ctx context.Context, vote proposal.Vote) (proposal.ConsensusResult, error) {
	ctx, span := s.tracer.Start(ctx, "economy.submit_vote",
		trace.WithAttributes(attribute.String("proposal_id", vote.ProposalID)))
	defer span.End()
	result, err := s.engine.SubmitVote(ctx, vote)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	span.SetAttributes(attribute.Bool("consensus_reached", result.Reached))
	return result, nil
}

// RejectProposal closes a proposal and refunds its escrow.
func (s *Service) RejectProposal(ctx context.Context, proposalID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "economy.reject_proposal",
		trace.WithAttributes(attribute.String("proposal_id", proposalID)))
	defer span.End()
	if err := s.engine.Reject(ctx, proposalID, reason); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Proposal returns the stored proposal record.
func (s *Service) Proposal(ctx context.Context, proposalID string) (proposal.Proposal, error) {
	return s.store.GetProposal(ctx, proposalID)
}

// Votes returns all votes on a proposal in cast order.
func (s *Service) Votes(ctx context.Context, proposalID string) ([]proposal.Vote, error) {
	return s.store.ListVotes(ctx, proposalID)
}

// BalanceOf returns an account's current balance; unknown accounts
// read as zero.
func (s *Service) BalanceOf(acct string) int64 {
	return s.coord.Accounts().BalanceOf(acct)
}

// Balances returns a snapshot of every account, sorted by id.
func (s *Service) Balances() []account.Account {
	return s.coord.Accounts().Snapshot()
}

// TotalSupply returns the sum of all balances.
func (s *Service) TotalSupply() int64 {
	return s.coord.Accounts().TotalBalance()
}

// VerifyChain re-validates the full hash chain against the store.
func (s *Service) VerifyChain(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "economy.verify_chain")
	defer span.End()
	if err := s.ledger.VerifyChain(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Events returns a page of chain events after the given sequence.
func (s *Service) Events(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	return s.store.ListEvents(ctx, afterSeq, limit)
}
