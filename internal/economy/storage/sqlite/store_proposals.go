package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/storage"
)

// PutProposal implements storage.ProposalStore.
func (s *Store) PutProposal(ctx context.Context, p proposal.Proposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("proposal id is required")
	}

	resolved := 0
	if p.Resolved {
		resolved = 1
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO proposals (
		   id,
		   creator,
		   bounty,
		   metadata,
		   state,
		   resolved,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Creator,
		p.Bounty,
		p.Metadata,
		string(p.State),
		resolved,
		toMillis(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "proposals.id") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put proposal: %w", err)
	}
	return nil
}

// GetProposal implements storage.ProposalStore.
func (s *Store) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return proposal.Proposal{}, err
	}
	if s == nil || s.sqlDB == nil {
		return proposal.Proposal{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, creator, bounty, metadata, state, resolved, created_at
		   FROM proposals
		  WHERE id = ?`,
		id,
	)

	var p proposal.Proposal
	var state string
	var resolved int
	var createdAt int64
	err := row.Scan(&p.ID, &p.Creator, &p.Bounty, &p.Metadata, &state, &resolved, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return proposal.Proposal{}, storage.ErrNotFound
		}
		return proposal.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	p.State = proposal.State(state)
	p.Resolved = resolved != 0
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

// SetState implements storage.ProposalStore. The WHERE clause keeps
// terminal states sticky without a read-modify-write cycle.
func (s *Store) SetState(ctx context.Context, id string, state proposal.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE proposals
		    SET state = ?
		  WHERE id = ?
		    AND state NOT IN (?, ?, ?)`,
		string(state),
		id,
		string(proposal.StateResolved),
		string(proposal.StateRejected),
		string(proposal.StatePayoutFailed),
	)
	if err != nil {
		return fmt.Errorf("set proposal state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set proposal state: %w", err)
	}
	if affected == 0 {
		// Either the proposal is missing or it is already terminal.
		if _, err := s.GetProposal(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ClaimResolution implements storage.ProposalStore. The conditional
// UPDATE is the only writer of the resolved flag, so exactly one caller
// observes a transition.
func (s *Store) ClaimResolution(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE proposals
		    SET resolved = 1
		  WHERE id = ?
		    AND resolved = 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("claim resolution: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim resolution: %w", err)
	}
	if affected == 1 {
		return true, nil
	}
	if _, err := s.GetProposal(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
