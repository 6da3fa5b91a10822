// Package integrity provides the HMAC keyring that signs chain hashes so a
// copied database cannot be rewritten and re-hashed without the key.
package integrity
