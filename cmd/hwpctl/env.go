package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/hwp-analyzer/internal/analysis"
	"github.com/joseph-ayodele/hwp-analyzer/internal/app"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
	"github.com/joseph-ayodele/hwp-analyzer/internal/document"
	"github.com/joseph-ayodele/hwp-analyzer/internal/repository"
)

// env lazily builds the services a command needs and closes them afterwards.
type env struct {
	cfg    *common.Config
	logger *slog.Logger
	out    *printer

	docs     *document.Handler
	analysis *app.Analysis
	db       *repository.DB
	history  repository.HistoryRepository
}

func newEnv() *env {
	cfg := common.LoadConfig()
	level := cfg.LogLevel
	if level == "info" {
		level = "warn"
	}
	return &env{
		cfg:    cfg,
		logger: common.NewLogger(os.Stderr, level, false),
		out:    newPrinter(os.Stdout, false),
	}
}

func (e *env) documents() (*document.Handler, error) {
	if e.docs == nil {
		h, err := app.Documents(e.cfg, e.logger)
		if err != nil {
			return nil, err
		}
		e.docs = h
	}
	return e.docs, nil
}

func (e *env) analyzer(ctx context.Context) (analysis.Service, error) {
	if e.analysis == nil {
		a, err := app.NewAnalysis(ctx, e.cfg, e.logger)
		if err != nil {
			return nil, fmt.Errorf("%w (set %s and LLM_PROVIDER)", err, providerKeyHint(e.cfg.LLM.Provider))
		}
		e.analysis = a
	}
	return e.analysis.Service, nil
}

// historyRepo returns nil without error when the database cannot be opened;
// commands that only record history keep working.
func (e *env) historyRepo(ctx context.Context, required bool) (repository.HistoryRepository, error) {
	if e.history == nil {
		db, repo, err := app.History(ctx, e.cfg, e.logger)
		if err != nil {
			if required {
				return nil, err
			}
			e.logger.Warn("history disabled", "error", err)
			return nil, nil
		}
		e.db, e.history = db, repo
	}
	return e.history, nil
}

func (e *env) close() {
	if e.analysis != nil {
		_ = e.analysis.Close()
	}
	if e.db != nil {
		e.db.Close(e.logger)
	}
}

func providerKeyHint(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "perplexity":
		return "PERPLEXITY_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// newFlags builds a flag set whose usage names the positional arguments.
func newFlags(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: hwpctl %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parseOne parses flags and requires exactly one positional argument.
func parseOne(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", errUsage
	}
	return fs.Arg(0), nil
}
