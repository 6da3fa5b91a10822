package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/storage"
)

// PutVote implements storage.VoteStore. The (proposal_id, reviewer_id)
// primary key enforces one vote per reviewer at the database.
func (s *Store) PutVote(ctx context.Context, v proposal.Vote) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(v.ProposalID) == "" {
		return fmt.Errorf("proposal id is required")
	}
	if strings.TrimSpace(v.ReviewerID) == "" {
		return fmt.Errorf("reviewer id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO proposal_votes (
		   proposal_id,
		   reviewer_id,
		   kind,
		   confidence,
		   cast_at
		 ) VALUES (?, ?, ?, ?, ?)`,
		v.ProposalID,
		v.ReviewerID,
		string(v.Kind),
		v.Confidence,
		toMillis(v.CastAt),
	)
	if err != nil {
		if isUniqueViolation(err, "proposal_votes.proposal_id") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put vote: %w", err)
	}
	return nil
}

// ListVotes implements storage.VoteStore. Votes come back in cast order.
func (s *Store) ListVotes(ctx context.Context, proposalID string) ([]proposal.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT proposal_id, reviewer_id, kind, confidence, cast_at
		   FROM proposal_votes
		  WHERE proposal_id = ?
		  ORDER BY rowid ASC`,
		proposalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []proposal.Vote
	for rows.Next() {
		var v proposal.Vote
		var kind string
		var castAt int64
		if err := rows.Scan(&v.ProposalID, &v.ReviewerID, &kind, &v.Confidence, &castAt); err != nil {
			return nil, fmt.Errorf("list votes: %w", err)
		}
		v.Kind = proposal.Kind(kind)
		v.CastAt = fromMillis(castAt)
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return votes, nil
}
