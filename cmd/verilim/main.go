package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/quarrylabs/verilim/internal/config"
	verilimmcp "github.com/quarrylabs/verilim/internal/mcp"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		if err := runPipeline(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "sample":
		if err := runSample(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "validate":
		if err := runValidate(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "sanitize":
		if err := runSanitize(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := runConfig(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := verilimmcp.ServeStdio(verilimmcp.NewServer(version)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("verilim %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runConfig prints the resolved configuration with provenance so users can
// see which layer set each value.
func runConfig(args []string) error {
	opts, _, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return err
	}
	// Never echo the token itself.
	if cfg.SessionToken.Value != "" {
		cfg.SessionToken.Value = "(set)"
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	fmt.Printf(`verilim %s — SAP requirement limitation research over the Perplexity web UI

Usage:
  verilim <command> [arguments]

Commands:
  run                 Process a requirements JSONL through research and validation
  sample              Write a sample requirements file if the input is missing
  validate            Re-validate an already-processed JSONL offline
  sanitize <file>     Sanitize raw model output from a file (or - for stdin)
  stats               Show run ledger statistics
  config              Print the resolved configuration with provenance
  mcp                 Serve the sanitize/validate/prompt tools over MCP stdio
  version             Print version

Run Flags:
  --input <path>        Input requirements JSONL
  --output <path>       Output JSONL for processed records
  --max-records <n>     Cap on records processed per run
  --model <name>        Model: best, research, sonar-think, gemini, gpt5,
                        gpt5-thinking, o3, grok4
  --min-items <n>       Minimum limitations for a record to count as processed
  --db <path>           Run ledger database path (--no-ledger to disable)
  --config <path>       Config file (default: ~/.verilim/config.yaml)
  --no-rewrite          Skip the human-readable rewrite step
  --no-ledger           Skip run accounting
  --verbose             Human-oriented debug logging

Environment:
  PERPLEXITY_SESSION_TOKEN   Session cookie for live access (required by run)
  VERILIM_INPUT, VERILIM_OUTPUT, VERILIM_MAX_RECORDS, VERILIM_MODEL,
  VERILIM_DB, VERILIM_MIN_ITEMS
  REWRITER_API_BASE, REWRITER_API_KEY, REWRITER_MODEL, REWRITER_ENABLED,
  REWRITER_TIMEOUT

Flags:
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
