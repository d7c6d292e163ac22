package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usage = `hwpctl: process and analyze HWP/HWPX documents

Usage:
  hwpctl <command> [flags] [args]

Commands:
  capability                report which extractor this machine supports
  process  <file>           extract text, tables, metadata and images
  export   <file>           write tables as XLSX or the document as Markdown
  analyze  <file>           LLM analysis of the document
  insights <file>           key insights from the document
  ask      <file>           answer a question from the document
  compare  <file> <file>    compare two documents
  freshness <file>          check how current a document is and suggest updates
  batch    <dir|glob>...    process many files concurrently
  watch    <dir>...         process files as they appear
  history                   list stored analyses

Run "hwpctl <command> -h" for command flags. Configuration is read from the
environment and an optional .env file.
`

type command struct {
	name string
	run  func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"capability", runCapability},
	{"process", runProcess},
	{"export", runExport},
	{"analyze", runAnalyze},
	{"insights", runInsights},
	{"ask", runAsk},
	{"compare", runCompare},
	{"freshness", runFreshness},
	{"batch", runBatch},
	{"watch", runWatch},
	{"history", runHistory},
}

// errUsage has already been reported by the flag set.
var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := os.Args[1], os.Args[2:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		e := newEnv()
		err := c.run(ctx, e, args)
		e.close()
		switch {
		case err == nil:
		case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
			os.Exit(2)
		default:
			e.logger.Error(name+" failed", "error", err)
			fmt.Fprintln(os.Stderr, e.out.st.Err.Render("error: ")+err.Error())
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
	os.Exit(2)
}
