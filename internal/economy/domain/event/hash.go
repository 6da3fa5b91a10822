package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// hashEnvelopeVersion pins the canonical field ordering; bump only with a
// chain migration.
const hashEnvelopeVersion = "v1"

// EventHash computes the content hash for a single event.
//
// The canonical envelope covers sequence, timestamp (millisecond UTC), type,
// and the serialized payload, so field ordering is defined in one place and
// cannot drift between layers.
func EventHash(evt Event) (string, error) {
	if !evt.Type.IsValid() {
		return "", fmt.Errorf("event type %q is not hashable", evt.Type)
	}
	if evt.Timestamp.IsZero() {
		return "", fmt.Errorf("event timestamp is required")
	}
	envelope := strings.Join([]string{
		hashEnvelopeVersion,
		strconv.FormatUint(evt.Seq, 10),
		strconv.FormatInt(evt.Timestamp.UTC().UnixMilli(), 10),
		string(evt.Type),
		string(evt.PayloadJSON),
	}, "|")
	return sha256Hex(envelope), nil
}

// ChainHash computes the hash that links an event to its predecessor. The
// following event stores the result as its PrevHash.
func ChainHash(evt Event, prevHash string) (string, error) {
	if strings.TrimSpace(evt.Hash) == "" {
		return "", fmt.Errorf("event hash is required before chaining")
	}
	if strings.TrimSpace(prevHash) == "" {
		return "", fmt.Errorf("previous hash is required")
	}
	return sha256Hex(hashEnvelopeVersion + "|" + evt.Hash + "|" + prevHash), nil
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
