// mdcite replaces inline Markdown links and raw URLs with numbered citations
// and appends a deduplicated References section.
//
// Usage:
//
//	mdcite [input [output]] [flags]
//	cat report.md | mdcite
//	mdcite report.md optimized.md --no-group-domains
//	mdcite -w report.md    # modify file in place
//
// Flags may appear before, between or after the paths; "--" ends flag parsing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dbh/mdcite/internal/citation"
	"github.com/dbh/mdcite/internal/cli"
	"github.com/dbh/mdcite/internal/logger"
	"github.com/dbh/mdcite/internal/markdown"
	"github.com/dbh/mdcite/internal/report"
)

type options struct {
	writeInPlace   bool
	verbose        bool
	noGroupDomains bool
	noKeepDomains  bool
	htmlMode       string
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("mdcite", flag.ContinueOnError)
	fs.BoolVar(&opts.writeInPlace, "w", false, "write result to file instead of stdout")
	fs.BoolVar(&opts.verbose, "v", false, "log debug details to stderr")
	fs.BoolVar(&opts.noGroupDomains, "no-group-domains", false, "list references flat instead of grouped by domain")
	fs.BoolVar(&opts.noKeepDomains, "no-keep-domains", false, "strip domain names from existing host[n] markers")
	fs.StringVar(&opts.htmlMode, "html", "never", "convert HTML input first: auto, always or never")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: mdcite [input [output]] [flags]\n")
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses flags wherever they appear in args and returns the
// positional arguments in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		// fs consumed a "--" terminator: everything left is positional
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func main() {
	var opts options
	fs := newFlagSet(&opts)
	args, err := parseArgs(fs, os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := run(opts, args); err != nil {
		fmt.Fprintf(os.Stderr, "mdcite: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, args []string) error {
	mode, err := markdown.ParseHTMLMode(opts.htmlMode)
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Development: true, OutputPaths: []string{"stderr"}})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	citeOpts := citation.Options{
		GroupByDomain:   !opts.noGroupDomains,
		KeepDomainNames: !opts.noKeepDomains,
	}

	transform := func(content string) (string, int, error) {
		prepared, converted, err := markdown.Prepare(content, mode, "")
		if err != nil {
			return "", 0, err
		}
		text, n := citation.Transform(prepared, citeOpts)

		stats := report.Compare(content, text)
		log.Debug(stats.Summary(),
			logger.Bool("converted_from_html", converted),
			logger.Int("original_tokens", stats.OriginalTokens),
			logger.Int("processed_tokens", stats.ProcessedTokens),
			logger.Float64("savings_percent", stats.SavingsPercent),
		)
		return text, n, nil
	}

	return cli.Run(args, opts.writeInPlace, "mdcite", transform, log)
}
