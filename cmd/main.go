package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"phimgg-importer/checkpoint"
	"phimgg-importer/config"
	"phimgg-importer/importer"
	"phimgg-importer/notifier"
	"phimgg-importer/ophim"
	"phimgg-importer/resilience"
	"phimgg-importer/scheduler"
	"phimgg-importer/server"
	"phimgg-importer/storage"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	// Initialize logger with timestamp
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return exitFailure
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	log.Println("Starting PhimGG importer...")

	store, err := storage.Open(storage.Config{DataPath: cfg.DataPath, DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		log.Printf("Failed to initialize storage: %v", err)
		return exitFailure
	}
	defer store.Close()

	client, err := ophim.NewClient(ophim.Config{
		BaseURL:   cfg.OPhim.BaseURL,
		UserAgent: cfg.OPhim.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
		Debug:     opts.verbose,
	})
	if err != nil {
		log.Printf("Failed to create catalog client: %v", err)
		return exitFailure
	}

	checkpoints := checkpointStore(store, cfg.RunMode, opts.checkpointPath)

	imp := importer.New(client, store, importer.Config{
		Limiter: resilience.NewLimiter(cfg.RateLimit()),
		Retry: resilience.RetryPolicy{
			MaxRetries: uint64(cfg.Import.MaxRetries),
			Delay:      cfg.RetryDelay(),
			Linear:     true,
		},
		Checkpoints: checkpoints,
		SourceName:  checkpointSource(cfg.RunMode),
		Logger:      log.Default(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMode == config.ModeScheduler {
		return runScheduler(ctx, stop, cfg, imp, store)
	}
	return runOnce(ctx, opts, imp, store, checkpoints, stdout)
}

// scheduledSource keeps scheduled runs from overwriting the checkpoint of an
// interrupted command line run.
const scheduledSource = importer.DefaultSource + "-scheduled"

func checkpointSource(mode string) string {
	if mode == config.ModeScheduler {
		return scheduledSource
	}
	return importer.DefaultSource
}

// checkpointStore picks where run state is kept. A checkpoint file only
// applies to command line runs.
func checkpointStore(store *storage.SQLStorage, mode, file string) checkpoint.Store {
	if mode != config.ModeScheduler && file != "" {
		return checkpoint.NewFileStore(file)
	}
	return store.Checkpoints(checkpointSource(mode))
}

func runOnce(ctx context.Context, opts *cliOptions, imp *importer.Importer, store *storage.SQLStorage, checkpoints checkpoint.Store, stdout io.Writer) int {
	log.Printf("Running in single execution mode: pages %d-%d", opts.start, opts.end)

	if !opts.resume && !opts.validateOnly {
		if state, err := checkpoints.Load(ctx); err == nil && state.Phase == checkpoint.PhaseInProgress {
			log.Printf("Run %s stopped after page %d of %d-%d; pass --resume to continue it",
				state.RunID, state.LastCompletedPage, state.PageStart, state.PageEnd)
		}
	}

	stats, err := imp.Run(ctx, importer.Options{
		PageStart:    opts.start,
		PageEnd:      opts.end,
		SkipExisting: !opts.noSkip,
		ValidateOnly: opts.validateOnly,
		Verbose:      opts.verbose,
		Resume:       opts.resume,
	})
	if stats != nil {
		if werr := stats.WriteSummary(stdout); werr != nil {
			log.Printf("Failed to write summary: %v", werr)
		}
	}
	if err != nil {
		log.Printf("Import aborted: %v", err)
		return exitFailure
	}

	if !opts.validateOnly {
		displayDatabaseStats(ctx, store)
	}

	if stats.HasFailures() {
		return exitFailure
	}
	return exitOK
}

func runScheduler(ctx context.Context, stop context.CancelFunc, cfg *config.Config, imp *importer.Importer, store *storage.SQLStorage) int {
	log.Println("Starting in scheduler mode")

	var notify scheduler.Notifier
	if cfg.Email.Enabled() {
		emailNotifier, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			SMTPHost:       cfg.Email.SMTPHost,
			SMTPPort:       cfg.Email.SMTPPort,
			SenderEmail:    cfg.Email.Sender,
			SenderPassword: cfg.Email.Password,
			RecipientEmail: cfg.Email.Recipient,
		})
		if err != nil {
			log.Printf("Failed to create email notifier: %v", err)
			return exitFailure
		}
		notify = emailNotifier
	} else {
		log.Println("Email not configured, import notifications disabled")
	}

	job := scheduler.NewImportJob(imp, cfg.Import.Pages, notify)

	sched := scheduler.NewScheduler()
	if err := sched.AddJob(cfg.Import.Schedule, job); err != nil {
		log.Printf("Failed to schedule import job: %v", err)
		return exitFailure
	}
	sched.Start()
	log.Printf("Scheduler started. The newest %d pages will be imported on %q", cfg.Import.Pages, cfg.Import.Schedule)

	// Run the job once at startup if specified
	if cfg.Import.RunAtStartup {
		log.Println("Running initial import at startup")
		go func() {
			if err := sched.RunJobNow(job.Name()); err != nil {
				log.Printf("Error running initial job: %v", err)
			}
		}()
	}

	displayDatabaseStats(ctx, store)

	// imports started over HTTP are cancelled on shutdown
	srv := server.New(ctx, cfg.HTTPAddr, job, func() time.Time { return sched.NextRun(job.Name()) }, store)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	log.Println("Application running. Press Ctrl+C to exit")

	code := exitOK
	select {
	case <-ctx.Done():
		log.Println("Received signal, shutting down...")
		// a second signal kills the process
		stop()
	case err := <-serveErr:
		if err != nil {
			log.Printf("HTTP server failed: %v", err)
			code = exitFailure
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shut down HTTP server: %v", err)
	}

	// Gracefully stop the scheduler
	sched.Stop()
	// imports started over HTTP were cancelled with ctx; let them record their result
	for job.Running() && shutdownCtx.Err() == nil {
		time.Sleep(100 * time.Millisecond)
	}
	log.Println("Application exiting")
	return code
}

// displayDatabaseStats shows database statistics
func displayDatabaseStats(ctx context.Context, store *storage.SQLStorage) {
	log.Println("Database Statistics")

	stats, err := store.GetStats(ctx)
	if err != nil {
		log.Printf("Error getting database stats: %v", err)
		return
	}

	log.Printf("Movies: %d", stats.Movies)
	log.Printf("Episodes: %d", stats.Episodes)
	for kind, n := range stats.ByType {
		log.Printf("  %s: %d", kind, n)
	}

	recent, err := store.RecentMovies(ctx, 5)
	if err != nil {
		log.Printf("Error getting recent movies: %v", err)
		return
	}

	log.Printf("Recent Movies (last %d):", len(recent))
	for _, m := range recent {
		year := ""
		if m.Year != nil {
			year = fmt.Sprintf(" (%d)", *m.Year)
		}
		log.Printf("- %s%s [%s] - %s", m.Name, year, m.Type, m.EpisodeCurrent)
	}
}
