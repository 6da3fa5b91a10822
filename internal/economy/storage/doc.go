// Package storage declares the persistence interfaces of the economy core.
// Implementations live in the sqlite and memory subpackages.
package storage
