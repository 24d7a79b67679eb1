package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"phimgg-importer/config"
)

// cliOptions holds the parsed command line. Numeric settings only override
// the loaded configuration when the flag was given.
type cliOptions struct {
	start, end     int
	noSkip         bool
	validateOnly   bool
	verbose        bool
	resume         bool
	rateLimitMS    int
	retries        int
	retryDelayMS   int
	checkpointPath string
	configPath     string
	mode           string

	set map[string]bool
}

const usageHeader = `Usage: phimgg-importer [options]

Imports movies from the OPhim catalog into the local database.
Without --page, --start or --end only page 1 is imported.

Options:
`

func parseArgs(args []string, output io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}
	var page int

	fs := flag.NewFlagSet("phimgg-importer", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, usageHeader)
		fs.PrintDefaults()
	}

	fs.IntVar(&page, "page", 0, "import a single page")
	fs.IntVar(&opts.start, "start", 0, "first page of the range (1-based)")
	fs.IntVar(&opts.end, "end", 0, "last page of the range, inclusive")
	fs.BoolVar(&opts.noSkip, "no-skip", false, "re-import movies that already exist")
	fs.BoolVar(&opts.validateOnly, "validate-only", false, "fetch and validate without writing anything")
	fs.BoolVar(&opts.verbose, "verbose", false, "log every movie")
	fs.BoolVar(&opts.verbose, "v", false, "shorthand for --verbose")
	fs.IntVar(&opts.rateLimitMS, "rate-limit", 500, "minimum `ms` between API calls")
	fs.IntVar(&opts.retries, "retries", 3, "retries per failed API call")
	fs.IntVar(&opts.retryDelayMS, "retry-delay", 1000, "base `ms` between retries, grows linearly")
	fs.BoolVar(&opts.resume, "resume", false, "continue the interrupted run from its checkpoint")
	fs.StringVar(&opts.checkpointPath, "checkpoint", "", "keep the checkpoint in this JSON `file` instead of the database")
	fs.StringVar(&opts.configPath, "config", "", "YAML config `file`")
	fs.StringVar(&opts.mode, "mode", "", "once or scheduler (default from RUN_MODE, else once)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if err := opts.resolvePages(page); err != nil {
		return nil, err
	}
	if opts.rateLimitMS < 0 {
		return nil, errors.New("--rate-limit must be >= 0")
	}
	if opts.retries < 0 {
		return nil, errors.New("--retries must be >= 0")
	}
	if opts.retryDelayMS < 0 {
		return nil, errors.New("--retry-delay must be >= 0")
	}
	if opts.mode != "" && opts.mode != config.ModeOnce && opts.mode != config.ModeScheduler {
		return nil, fmt.Errorf("--mode must be %q or %q, got %q", config.ModeOnce, config.ModeScheduler, opts.mode)
	}
	return opts, nil
}

func (o *cliOptions) resolvePages(page int) error {
	if o.set["page"] {
		if o.set["start"] || o.set["end"] {
			return errors.New("--page cannot be combined with --start or --end")
		}
		o.start, o.end = page, page
	} else {
		switch {
		case !o.set["start"] && !o.set["end"]:
			o.start, o.end = 1, 1
		case !o.set["end"]:
			o.end = o.start
		case !o.set["start"]:
			o.start = 1
		}
	}

	if o.start < 1 {
		return fmt.Errorf("pages start at 1, got %d", o.start)
	}
	if o.end < o.start {
		return fmt.Errorf("--end %d is before --start %d", o.end, o.start)
	}
	return nil
}

// apply lays the flags that were given over cfg.
func (o *cliOptions) apply(cfg *config.Config) {
	if o.set["rate-limit"] {
		cfg.Import.RateLimitMS = o.rateLimitMS
	}
	if o.set["retries"] {
		cfg.Import.MaxRetries = o.retries
	}
	if o.set["retry-delay"] {
		cfg.Import.RetryDelayMS = o.retryDelayMS
	}
	if o.mode != "" {
		cfg.RunMode = o.mode
	}
}
