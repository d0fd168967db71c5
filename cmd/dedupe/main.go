package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: dedupe <command> [flags]

commands:
  run     cluster all records once, persist canonical names and print the summary
  serve   expose POST /runs, GET /runs/latest, /healthz and /metrics over HTTP
  schema  create the record and canonical tables when missing

Configuration is read from DEDUP_* environment variables; flags override them.
`

// main dispatches subcommands. Wiring lives in app.go; business logic lives in
// internal/dedup.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "dedupe:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return runCommand(ctx, rest, stdout)
	case "serve":
		return serveCommand(ctx, rest)
	case "schema":
		return schemaCommand(ctx, rest)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
