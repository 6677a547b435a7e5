// Command proofread corrects OCR'd text documents with a chat-completion model.
//
// Usage:
//
//	proofread ocr [flags]    proofread every *.txt under the base directory
//	proofread schema         print the JSON Schema of the configuration file
//
// Configuration is read from defaults, the --config file, .env, PROOFREAD_*
// environment variables and finally the command line flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/randalmurphal/proofread/completion"
	"github.com/randalmurphal/proofread/config"
	"github.com/randalmurphal/proofread/discover"
	"github.com/randalmurphal/proofread/dispatch"
	"github.com/randalmurphal/proofread/model"
	"github.com/randalmurphal/proofread/provider"
	"github.com/randalmurphal/proofread/runner"
	"github.com/randalmurphal/proofread/template"

	_ "github.com/randalmurphal/proofread/mock"
	_ "github.com/randalmurphal/proofread/openai"
)

const usageText = `Usage: proofread <command> [flags]

Commands:
  ocr      proofread every document under the base directory
  schema   print the JSON Schema of the configuration file

Run "proofread ocr -h" for the ocr flags.
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "proofread: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return errUsage
	}
	switch args[0] {
	case "ocr":
		return runOCR(ctx, args[1:], stderr)
	case "schema":
		return runSchema(stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usageText)
		return errUsage
	}
}

func runSchema(w io.Writer) error {
	data, err := config.Schema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type ocrFlags struct {
	config      string
	envFile     string
	provider    string
	model       string
	wrap        string
	marker      string
	promptFile  string
	base        string
	concurrency int
	asciiOnly   bool
	watch       bool
}

func parseOCRFlags(args []string, stderr io.Writer) (*ocrFlags, *flag.FlagSet, error) {
	f := &ocrFlags{}
	fs := flag.NewFlagSet("ocr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "configuration file (.yaml, .toml or .json)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	fs.StringVar(&f.provider, "provider", "", "completion backend ("+strings.Join(provider.Available(), ", ")+")")
	fs.StringVar(&f.model, "model", "", "model identifier (default "+provider.DefaultModel+")")
	fs.StringVar(&f.wrap, "wrap", "", "template wrapped around each chunk (default "+template.DefaultWrap+")")
	fs.StringVar(&f.marker, "marker", "", "placeholder in --wrap replaced by the chunk (default "+template.DefaultMarker+")")
	fs.StringVar(&f.promptFile, "prompt-file", "", "file with the proofreading instructions (default "+config.DefaultPromptFile+")")
	fs.StringVar(&f.base, "base", "", "directory searched for *.txt documents (default "+config.DefaultBase+")")
	fs.IntVar(&f.concurrency, "concurrency", 0, "in-flight requests per document, 0 for unbounded")
	fs.BoolVar(&f.asciiOnly, "ascii-only", false, "drop non-ASCII characters before sending")
	fs.BoolVar(&f.watch, "watch", false, "keep running and proofread new documents as they appear")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("ocr: unexpected arguments %v", fs.Args())
	}
	return f, fs, nil
}

// loadConfig layers defaults, file, dotenv, environment and explicitly set
// flags, in that order.
func loadConfig(f *ocrFlags, fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return cfg, err
		}
	}
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return cfg, err
	}
	cfg.LoadFromEnv()

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "provider":
			cfg.Backend.Provider = f.provider
		case "model":
			cfg.Backend.Model = f.model
		case "wrap":
			cfg.Template.Wrap = f.wrap
		case "marker":
			cfg.Template.Marker = f.marker
		case "prompt-file":
			cfg.PromptFile = f.promptFile
		case "base":
			cfg.Base = f.base
		case "concurrency":
			cfg.Concurrency = f.concurrency
		case "ascii-only":
			cfg.ASCIIOnly = f.asciiOnly
		}
	})
	return cfg, cfg.Validate()
}

func runOCR(ctx context.Context, args []string, stderr io.Writer) error {
	f, fs, err := parseOCRFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f, fs)
	if err != nil {
		return err
	}

	logger, err := cfg.Log.Logger(stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	instructions, err := template.LoadInstructions(cfg.PromptFile)
	if err != nil {
		return err
	}
	wrap, err := cfg.Wrap()
	if err != nil {
		return err
	}

	client, err := provider.NewFromConfig(cfg.Backend)
	if err != nil {
		return err
	}
	defer client.Close()

	tracker := cfg.CostTracker()
	completer := completion.New(client, cfg.Completion(),
		completion.WithLogger(logger),
		completion.WithCostTracker(tracker))
	engine := dispatch.New(completer, dispatch.Options{
		Concurrency: cfg.Concurrency,
		Margin:      cfg.Margin,
		MaxTokens:   cfg.Decoding.MaxTokens,
		Profiles:    cfg.ProfileSet(),
		Logger:      logger,
	})
	r := runner.New(engine, runner.Options{
		Instructions: instructions,
		Model:        cfg.Backend.Model,
		Wrap:         wrap,
		MinLength:    cfg.MinLength,
		Logger:       logger,
	})

	if !model.Known(cfg.Backend.Model) {
		logger.Warn("model has no pricing; cost estimate will be zero", slog.String("model", cfg.Backend.Model))
	}
	logger.Info("starting",
		slog.String("provider", client.Provider()),
		slog.String("model", cfg.Backend.Model),
		slog.String("base", cfg.Base),
		slog.Int("concurrency", cfg.Concurrency))

	layout := discover.Layout{Suffix: cfg.Suffix}
	sum, err := process(ctx, r, cfg.Base, layout, f.watch, logger)
	logSummary(logger, sum, tracker)
	if provider.IsAuthError(err) {
		logger.Error("backend rejected the credentials",
			slog.String("env", cfg.Backend.APIKeyEnv),
			slog.String("key_file", cfg.Backend.APIKeyFile))
	}
	if err != nil {
		return err
	}
	return sum.Err()
}

// process runs over the existing documents and, in watch mode, keeps
// following new ones until ctx ends. An interrupt is a normal stop. The
// watcher starts before the walk so that no document written in between is
// missed.
func process(ctx context.Context, r *runner.Runner, base string, layout discover.Layout, watch bool, logger *slog.Logger) (runner.Summary, error) {
	var events <-chan discover.Document
	if watch {
		ch, err := discover.Watch(ctx, base, discover.WatchOptions{Layout: layout, Logger: logger})
		if err != nil {
			return runner.Summary{}, err
		}
		events = ch
	}

	docs, err := discover.Walk(base, layout, logger)
	if err != nil {
		return runner.Summary{}, err
	}
	sum, err := r.Run(ctx, docs)
	if errors.Is(err, context.Canceled) {
		return sum, nil
	}
	if err != nil || !watch {
		return sum, err
	}

	logger.Info("watching for new documents", slog.String("base", base))
	more, err := r.Follow(ctx, events)
	sum.Processed += more.Processed
	sum.Skipped += more.Skipped
	sum.Failed += more.Failed
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return sum, err
}

func logSummary(logger *slog.Logger, sum runner.Summary, tracker *model.CostTracker) {
	total := tracker.TotalUsage()
	logger.Info("run finished",
		slog.Int("processed", sum.Processed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Int("requests", total.Requests),
		slog.Int("input_tokens", total.InputTokens),
		slog.Int("output_tokens", total.OutputTokens),
		slog.String("estimated_cost", fmt.Sprintf("$%.4f", tracker.EstimatedCost())))
	for name, cost := range tracker.EstimatedCostByModel() {
		logger.Debug("model cost", slog.String("model", string(name)), slog.Float64("usd", cost))
	}
}
