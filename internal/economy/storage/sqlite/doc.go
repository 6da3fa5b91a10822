// Package sqlite provides the SQLite-backed economy store.
//
// It persists the sealed event chain, proposal records, and reviewer votes.
// Uniqueness lives in the schema: the event sequence is the ledger_events
// primary key and (proposal_id, reviewer_id) keys proposal_votes, so append
// conflicts and double votes fail at the database rather than in code.
package sqlite
