// Package audit parses audit command flags and runs the chain audit.
package audit

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/openclearing/bountyledger/internal/economy/domain/event"
	"github.com/openclearing/bountyledger/internal/economy/integrity"
	"github.com/openclearing/bountyledger/internal/economy/ledger"
	"github.com/openclearing/bountyledger/internal/economy/storage/sqlite"
	entrypoint "github.com/openclearing/bountyledger/internal/platform/cmd"
)

// Config holds audit command configuration.
type Config struct {
	DBPath   string `env:"BOUNTYLEDGER_DB_PATH" envDefault:"data/economy.db"`
	LedgerID string `env:"BOUNTYLEDGER_LEDGER_ID" envDefault:"main"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the economy SQLite database")
	fs.StringVar(&cfg.LedgerID, "ledger-id", cfg.LedgerID, "ledger identity used for signature verification")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run verifies the stored chain and prints a balance report. A broken
// chain or a failed replay is returned as an error so the process exits
// non-zero.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAudit, func(ctx context.Context) error {
		return audit(ctx, cfg, out)
	})
}

func audit(ctx context.Context, cfg Config, out io.Writer) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	opts := []ledger.Option{ledger.WithLedgerID(cfg.LedgerID)}
	if strings.TrimSpace(os.Getenv("BOUNTYLEDGER_LEDGER_HMAC_KEY")) != "" ||
		strings.TrimSpace(os.Getenv("BOUNTYLEDGER_LEDGER_HMAC_KEYS")) != "" {
		keyring, err := integrity.KeyringFromEnv()
		if err != nil {
			return fmt.Errorf("load keyring: %w", err)
		}
		opts = append(opts, ledger.WithKeyring(keyring))
	}

	led := ledger.New(store, event.NewEconomyRegistry(), opts...)
	if err := led.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap ledger: %w", err)
	}
	if err := led.VerifyChain(ctx); err != nil {
		return fmt.Errorf("chain verification failed: %w", err)
	}
	accounts, err := led.Replay(ctx)
	if err != nil {
		return fmt.Errorf("replay balances: %w", err)
	}

	head, err := store.LatestSeq(ctx)
	if err != nil {
		return fmt.Errorf("read chain head: %w", err)
	}

	fmt.Fprintf(out, "chain OK: head seq %d\n", head)
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ACCOUNT\tBALANCE\tEARNED\tSPENT")
	for _, acct := range accounts.Snapshot() {
		fmt.Fprintf(writer, "%s\t%d\t%d\t%d\n", acct.ID, acct.Balance, acct.TotalEarned, acct.TotalSpent)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(out, "total supply: %d\n", accounts.TotalBalance())
	return nil
}
