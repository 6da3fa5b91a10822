package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/storage"
)

// AppendEvent implements storage.LedgerStore. The sequence number is the
// primary key, so two writers racing for the same chain position resolve
// at the database: the loser gets ErrSeqTaken.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO ledger_events (
		   seq,
		   timestamp_ms,
		   event_type,
		   event_hash,
		   prev_hash,
		   chain_hash,
		   signature,
		   signature_key_id,
		   payload_json
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.Seq,
		toMillis(evt.Timestamp),
		string(evt.Type),
		evt.Hash,
		evt.PrevHash,
		evt.ChainHash,
		evt.Signature,
		evt.SignatureKeyID,
		string(evt.PayloadJSON),
	)
	if err != nil {
		if isUniqueViolation(err, "ledger_events.seq") {
			return storage.ErrSeqTaken
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

const eventColumns = `seq, timestamp_ms, event_type, event_hash,
	        prev_hash, chain_hash, signature, signature_key_id, payload_json`

func scanEvent(scan func(...any) error) (event.Event, error) {
	var evt event.Event
	var timestampMillis int64
	var eventType string
	var payload string
	err := scan(
		&evt.Seq,
		&timestampMillis,
		&eventType,
		&evt.Hash,
		&evt.PrevHash,
		&evt.ChainHash,
		&evt.Signature,
		&evt.SignatureKeyID,
		&payload,
	)
	if err != nil {
		return event.Event{}, err
	}
	evt.Timestamp = fromMillis(timestampMillis)
	evt.Type = event.Type(eventType)
	evt.PayloadJSON = []byte(payload)
	return evt, nil
}

// GetEventBySeq implements storage.LedgerStore.
func (s *Store) GetEventBySeq(ctx context.Context, seq uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+eventColumns+`
		   FROM ledger_events
		  WHERE seq = ?`,
		seq,
	)
	evt, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, storage.ErrNotFound
		}
		return event.Event{}, fmt.Errorf("get event: %w", err)
	}
	return evt, nil
}

// ListEvents implements storage.LedgerStore.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+eventColumns+`
		   FROM ledger_events
		  WHERE seq > ?
		  ORDER BY seq ASC
		  LIMIT ?`,
		afterSeq,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// LatestSeq implements storage.LedgerStore.
func (s *Store) LatestSeq(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT MAX(seq) FROM ledger_events`)
	var seq sql.NullInt64
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	if !seq.Valid {
		return 0, storage.ErrNotFound
	}
	return uint64(seq.Int64), nil
}
