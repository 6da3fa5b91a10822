// Package hmackey generates ledger signing keys in env-file form.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Config holds configuration for HMAC key generation.
type Config struct {
	Bytes int
	KeyID string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "emit a keyring entry under this key id instead of a single key")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it to out. With a key id the output is
// a BOUNTYLEDGER_LEDGER_HMAC_KEYS entry suitable for appending to an
// existing keyring during rotation; otherwise it is the single-key form.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}

	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		_, err := fmt.Fprintf(out, "BOUNTYLEDGER_LEDGER_HMAC_KEY=%s\n", hex.EncodeToString(buf))
		return err
	}
	_, err := fmt.Fprintf(out, "BOUNTYLEDGER_LEDGER_HMAC_KEYS=%s=%s\nBOUNTYLEDGER_LEDGER_HMAC_KEY_ID=%s\n",
		keyID, hex.EncodeToString(buf), keyID)
	return err
}
