// Package main runs the ledger audit: chain verification plus a balance
// report over the stored event chain.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	auditcmd "github.com/openclearing/bountyledger/internal/cmd/audit"
)

func main() {
	cfg, err := auditcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[AUDIT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := auditcmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("audit failed: %v", err)
	}
}
