package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/quarrylabs/verilim/internal/config"
	"github.com/quarrylabs/verilim/internal/jsonl"
	"github.com/quarrylabs/verilim/internal/pipeline"
	"github.com/quarrylabs/verilim/internal/policy"
	"github.com/quarrylabs/verilim/internal/pplx"
	"github.com/quarrylabs/verilim/internal/record"
	"github.com/quarrylabs/verilim/internal/rewrite"
	"github.com/quarrylabs/verilim/internal/sanitize"
	"github.com/quarrylabs/verilim/internal/store"
)

// runFlags are the CLI toggles that do not belong in the config resolver.
type runFlags struct {
	noRewrite bool
	noLedger  bool
	verbose   bool
	args      []string
}

func parseRunFlags(args []string) (config.ResolveOptions, runFlags, error) {
	var opts config.ResolveOptions
	var flags runFlags

	takeValue := func(i int, flag string) (string, int, error) {
		if i+1 >= len(args) {
			return "", i, fmt.Errorf("%s requires a value", flag)
		}
		return args[i+1], i + 1, nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		var err error
		switch arg {
		case "--input":
			opts.CLIInput, i, err = takeValue(i, arg)
		case "--output":
			opts.CLIOutput, i, err = takeValue(i, arg)
		case "--max-records":
			opts.CLIMaxRecords, i, err = takeValue(i, arg)
		case "--model":
			opts.CLIModel, i, err = takeValue(i, arg)
		case "--min-items":
			opts.CLIMinItems, i, err = takeValue(i, arg)
		case "--db":
			opts.CLIDBPath, i, err = takeValue(i, arg)
		case "--config":
			opts.ConfigPath, i, err = takeValue(i, arg)
		case "--no-rewrite":
			flags.noRewrite = true
		case "--no-ledger":
			flags.noLedger = true
		case "--verbose":
			flags.verbose = true
		default:
			if strings.HasPrefix(arg, "-") && arg != "-" {
				return opts, flags, fmt.Errorf("unknown flag: %s", arg)
			}
			flags.args = append(flags.args, arg)
		}
		if err != nil {
			return opts, flags, err
		}
	}
	return opts, flags, nil
}

func newLogger(verbose bool) *zap.Logger {
	var log *zap.Logger
	var err error
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func runPipeline(args []string) error {
	opts, flags, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return err
	}
	token, err := cfg.RequireSessionToken()
	if err != nil {
		return err
	}

	log := newLogger(flags.verbose)
	defer log.Sync()

	model, known := pplx.ModelByName(cfg.Model.Value)
	if !known {
		log.Warn("unknown model name, using default",
			zap.String("requested", cfg.Model.Value),
			zap.String("using", model.Identifier))
	}

	inputPath := cfg.InputPath.Value
	if err := jsonl.EnsureSampleInput(inputPath); err != nil {
		return fmt.Errorf("preparing input: %w", err)
	}
	records, skipped, err := jsonl.Read(inputPath, 0)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	for _, lineNo := range skipped {
		log.Warn("skipping malformed input line",
			zap.String("path", inputPath),
			zap.Int("line", lineNo))
	}
	if len(records) == 0 {
		return fmt.Errorf("no records in %s", inputPath)
	}

	client := pplx.New(token, pplx.WithModel(model), pplx.WithLogger(log))

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithItemBounds(cfg.MinItemsInt(), 0),
	}
	if !flags.noRewrite {
		pipelineOpts = append(pipelineOpts, pipeline.WithRewriter(rewrite.New(rewrite.ConfigFromEnv(), log)))
	}
	if !flags.noLedger {
		ledger, err := openLedger(cfg)
		if err != nil {
			log.Warn("ledger unavailable, continuing without run accounting", zap.Error(err))
		} else {
			defer ledger.Close()
			pipelineOpts = append(pipelineOpts, pipeline.WithLedger(ledger))
		}
	}

	p := pipeline.New(client, pipelineOpts...)
	out := p.ProcessRecords(context.Background(), records, cfg.MaxRecordsInt(), pipeline.RunMeta{
		InputPath:  inputPath,
		OutputPath: cfg.OutputPath.Value,
		Model:      model.Identifier,
	})

	if err := jsonl.Write(cfg.OutputPath.Value, out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	ok := countProcessed(out)
	fmt.Printf("Processed %d/%d records -> %s\n", ok, len(out), cfg.OutputPath.Value)
	return nil
}

func runSample(args []string) error {
	opts, _, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.InputPath.Value); err == nil {
		fmt.Printf("Input already exists: %s\n", cfg.InputPath.Value)
		return nil
	}
	if err := jsonl.EnsureSampleInput(cfg.InputPath.Value); err != nil {
		return err
	}
	fmt.Printf("Wrote sample requirements to %s\n", cfg.InputPath.Value)
	return nil
}

// runValidate re-runs validation over an already-processed JSONL. Useful
// after policy changes, without touching the network.
func runValidate(args []string) error {
	opts, _, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return err
	}

	minItems := cfg.MinItemsInt()
	if minItems <= 0 {
		minItems = policy.DefaultMinItems
	}

	records, skipped, err := jsonl.Read(cfg.InputPath.Value, 0)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	for _, lineNo := range skipped {
		fmt.Fprintf(os.Stderr, "Skipping malformed line %d of %s\n", lineNo, cfg.InputPath.Value)
	}

	out := make([]record.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, record.Validate(rec, minItems))
	}
	if err := jsonl.Write(cfg.OutputPath.Value, out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("Validated %d records, %d processed -> %s\n", len(out), countProcessed(out), cfg.OutputPath.Value)
	return nil
}

// runSanitize sanitizes raw model output from a file or stdin and prints the
// numbered text plus extracted validation rows as JSON.
func runSanitize(args []string) error {
	var description string
	maxItems := policy.DefaultMaxItems
	var paths []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--description":
			if i+1 >= len(args) {
				return fmt.Errorf("--description requires a value")
			}
			i++
			description = args[i]
		case "--max-items":
			if i+1 >= len(args) {
				return fmt.Errorf("--max-items requires a value")
			}
			i++
			if _, err := fmt.Sscanf(args[i], "%d", &maxItems); err != nil {
				return fmt.Errorf("invalid --max-items: %s", args[i])
			}
		default:
			paths = append(paths, args[i])
		}
	}
	if len(paths) != 1 {
		return fmt.Errorf("usage: verilim sanitize <file|-> [--description <text>] [--max-items <n>]")
	}

	var raw []byte
	var err error
	if paths[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(paths[0])
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	result := sanitize.Sanitize(string(raw), description, maxItems)
	data, err := json.MarshalIndent(map[string]any{
		"text":       result.Text,
		"validation": result.Validation,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runStats(args []string) error {
	opts, _, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return err
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer ledger.Close()

	stats, err := ledger.GetStats(context.Background())
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}

	fmt.Printf("Runs:      %d\n", stats.Runs)
	fmt.Printf("Records:   %d\n", stats.Records)
	fmt.Printf("Processed: %d\n", stats.Processed)
	fmt.Printf("Failed:    %d\n", stats.Failed)
	if stats.LastFinished != nil {
		fmt.Printf("Last run:  %s\n", stats.LastFinished.Format("2006-01-02 15:04:05 MST"))
	}
	if len(stats.TopFailures) > 0 {
		fmt.Println("\nTop failure reasons:")
		for _, f := range stats.TopFailures {
			fmt.Printf("  %4d  %s\n", f.Count, f.Reason)
		}
	}
	return nil
}

func openLedger(cfg config.ResolvedConfig) (*store.Store, error) {
	dbPath := cfg.DBPath.Value
	if dbPath == "" {
		dbPath = store.DefaultDBPath
	}
	return store.Open(dbPath)
}

func countProcessed(records []record.Record) int {
	n := 0
	for _, rec := range records {
		if ok, _ := rec[record.KeyProcessed].(bool); ok {
			n++
		}
	}
	return n
}
