// OpenFreeAI - asynchronous multi-model prompt service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/zoumson/OpenFreeAI/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// command is one subcommand. It returns the process exit code.
type command func(ctx context.Context, args []string, out io.Writer) int

var commands = map[string]command{
	"serve":   cmdServe,
	"worker":  cmdWorker,
	"migrate": cmdMigrate,
	"models":  cmdModels,
	"mcp":     cmdMCP,
	"ask":     cmdAsk,
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("openfreeai", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	if *showHelp || fs.NArg() == 0 {
		printHelp(out)
		return 0
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	if name == "version" {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(out, "unknown command %q\n\n", name) //nolint:errcheck
		printHelp(out)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd(ctx, rest, out)
}

func printHelp(out io.Writer) {
	helpText := `OpenFreeAI - asynchronous multi-model prompt service

Usage:
  openfreeai [options] <command> [arguments]

Options:
  --version    Show version information
  --help       Show this help message

Commands:
  serve [--with-worker]   Start the HTTP API (optionally with an embedded worker pool)
  worker [--metrics-addr :9100]
                          Run the worker pool and serve its /metrics
  migrate                 Apply database migrations
  models load <file>      Add models from a .json, .yaml or .yml catalog file
  models list             Print the catalog in index order
  mcp                     Serve the job tools over MCP on stdio
  ask [flags] <prompt>    Submit a prompt to a server and wait for the results
  version                 Show version information

Configuration is read from the environment and an optional .env file.

Examples:
  openfreeai migrate
  openfreeai models load models.yaml
  openfreeai serve --with-worker
  openfreeai ask --models meta/llama:free,google/gemma "Hello"`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
