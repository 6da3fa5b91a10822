// Package main runs economy ledger operations from the command line.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	economycmd "github.com/openclearing/bountyledger/internal/cmd/economy"
)

func main() {
	cfg, err := economycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[ECONOMY] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := economycmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}
