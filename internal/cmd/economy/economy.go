// Package economy parses economy command flags and dispatches ledger
// operations against the stored chain.
package economy

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/openclearing/bountyledger/internal/economy/app"
	"github.com/openclearing/bountyledger/internal/economy/consensus"
	"github.com/openclearing/bountyledger/internal/economy/domain/proposal"
	"github.com/openclearing/bountyledger/internal/economy/integrity"
	"github.com/openclearing/bountyledger/internal/economy/ledger"
	"github.com/openclearing/bountyledger/internal/economy/storage/sqlite"
	entrypoint "github.com/openclearing/bountyledger/internal/platform/cmd"
)

// Config holds economy command configuration.
type Config struct {
	DBPath    string           `env:"BOUNTYLEDGER_DB_PATH" envDefault:"data/economy.db"`
	LedgerID  string           `env:"BOUNTYLEDGER_LEDGER_ID" envDefault:"main"`
	Consensus consensus.Config `envPrefix:"BOUNTYLEDGER_CONSENSUS_"`

	// Args holds the command and its positional arguments.
	Args []string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the economy SQLite database")
	fs.StringVar(&cfg.LedgerID, "ledger-id", cfg.LedgerID, "ledger identity used for signing")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Args = fs.Args()
	return cfg, nil
}

// Usage describes the available commands.
const Usage = `commands:
  mint <account> <amount> [reason]
  burn <account> <amount> [reason]
  transfer <from> <to> <amount> [reason]
  submit <creator> <bounty> [metadata]
  vote <proposal-id> <reviewer> <approve|request_changes|comment> <confidence>
  reject <proposal-id> [reason]
  balance <account>
  show <proposal-id>
  verify`

// Run opens the store and dispatches the requested command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEconomy, func(ctx context.Context) error {
		return run(ctx, cfg, out)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if len(cfg.Args) == 0 {
		return fmt.Errorf("a command is required\n%s", Usage)
	}

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

	service, err := app.New(ctx, store, cfg.Consensus, opts...)
	if err != nil {
		return err
	}
	return dispatch(ctx, service, cfg.Args, out)
}

func dispatch(ctx context.Context, service *app.Service, args []string, out io.Writer) error {
	command, rest := args[0], args[1:]
	switch command {
	case "mint":
		acct, amount, reason, err := accountAmountArgs(rest)
		if err != nil {
			return err
		}
		evt, err := service.Mint(ctx, acct, amount, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "minted %d to %s (seq %d)\n", amount, acct, evt.Seq)
	case "burn":
		acct, amount, reason, err := accountAmountArgs(rest)
		if err != nil {
			return err
		}
		evt, err := service.Burn(ctx, acct, amount, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "burned %d from %s (seq %d)\n", amount, acct, evt.Seq)
	case "transfer":
		if len(rest) < 3 {
			return fmt.Errorf("usage: transfer <from> <to> <amount> [reason]")
		}
		amount, err := parseAmount(rest[2])
		if err != nil {
			return err
		}
		evt, err := service.Transfer(ctx, rest[0], rest[1], amount, optional(rest, 3))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "transferred %d from %s to %s (seq %d)\n", amount, rest[0], rest[1], evt.Seq)
	case "submit":
		if len(rest) < 2 {
			return fmt.Errorf("usage: submit <creator> <bounty> [metadata]")
		}
		bounty, err := parseAmount(rest[1])
		if err != nil {
			return err
		}
		p, err := service.SubmitProposal(ctx, rest[0], bounty, optional(rest, 2))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "proposal %s submitted with bounty %d in escrow\n", p.ID, p.Bounty)
	case "vote":
		if len(rest) != 4 {
			return fmt.Errorf("usage: vote <proposal-id> <reviewer> <approve|request_changes|comment> <confidence>")
		}
		confidence, err := strconv.ParseFloat(rest[3], 64)
		if err != nil {
			return fmt.Errorf("parse confidence %q: %w", rest[3], err)
		}
		result, err := service.SubmitVote(ctx, proposal.Vote{
			ProposalID: rest[0],
			ReviewerID: rest[1],
			Kind:       proposal.Kind(rest[2]),
			Confidence: confidence,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "votes %d, approval %.2f, confidence %.2f, consensus %v\n",
			result.Votes, result.ApprovalRate, result.AvgConfidence, result.Reached)
	case "reject":
		if len(rest) < 1 {
			return fmt.Errorf("usage: reject <proposal-id> [reason]")
		}
		if err := service.RejectProposal(ctx, rest[0], optional(rest, 1)); err != nil {
			return err
		}
		fmt.Fprintf(out, "proposal %s rejected, escrow refunded\n", rest[0])
	case "balance":
		if len(rest) != 1 {
			return fmt.Errorf("usage: balance <account>")
		}
		fmt.Fprintf(out, "%d\n", service.BalanceOf(rest[0]))
	case "show":
		if len(rest) != 1 {
			return fmt.Errorf("usage: show <proposal-id>")
		}
		p, err := service.Proposal(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "proposal %s by %s: bounty %d, state %s\n", p.ID, p.Creator, p.Bounty, p.State)
	case "verify":
		// app.New already verified the chain; re-run for an explicit report.
		if err := service.VerifyChain(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "chain OK")
	default:
		return fmt.Errorf("unknown command %q\n%s", command, Usage)
	}
	return nil
}

func accountAmountArgs(rest []string) (string, int64, string, error) {
	if len(rest) < 2 {
		return "", 0, "", fmt.Errorf("usage: <account> <amount> [reason]")
	}
	amount, err := parseAmount(rest[1])
	if err != nil {
		return "", 0, "", err
	}
	return rest[0], amount, optional(rest, 2), nil
}

func parseAmount(value string) (int64, error) {
	amount, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return amount, nil
}

func optional(rest []string, index int) string {
	if index < len(rest) {
		return strings.Join(rest[index:], " ")
	}
	return ""
}
