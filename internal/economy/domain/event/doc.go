// Package event defines the immutable economic events of the ledger: the
// envelope, the tagged payload variants, and the canonical content and
// chain hashing that makes tampering with persisted history detectable.
package event
