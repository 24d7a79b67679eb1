package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"phimgg-importer/importer"
)

// ErrJobRunning is returned when an import is started while another one is
// still in progress.
var ErrJobRunning = errors.New("import already running")

// Runner runs one import.
type Runner interface {
	Run(ctx context.Context, opts importer.Options) (*importer.Stats, error)
}

// Notifier is told about every finished import.
type Notifier interface {
	NotifyImportResult(stats *importer.Stats, runErr error) error
}

// Result is the outcome of the last finished import.
type Result struct {
	Stats      *importer.Stats `json:"stats,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// ImportJob imports the newest catalog pages with skip-existing on, so
// each run only picks up titles added since the previous one.
type ImportJob struct {
	runner   Runner
	pages    int
	notifier Notifier

	mu      sync.Mutex
	running bool
	last    *Result
}

// NewImportJob creates the job. notifier may be nil.
func NewImportJob(runner Runner, pages int, notifier Notifier) *ImportJob {
	if pages < 1 {
		pages = 1
	}
	return &ImportJob{runner: runner, pages: pages, notifier: notifier}
}

// Name returns the name of the job
func (j *ImportJob) Name() string {
	return "catalog_import"
}

// Run imports and returns when the import is done.
func (j *ImportJob) Run(ctx context.Context) error {
	if !j.reserve() {
		return ErrJobRunning
	}
	return j.run(ctx)
}

// Start reserves the job and imports in the background. It returns
// ErrJobRunning without starting anything when an import is in progress.
func (j *ImportJob) Start(ctx context.Context) error {
	if !j.reserve() {
		return ErrJobRunning
	}
	go func() {
		if err := j.run(ctx); err != nil {
			log.Printf("Import failed: %v", err)
		}
	}()
	return nil
}

func (j *ImportJob) reserve() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	return true
}

func (j *ImportJob) run(ctx context.Context) error {
	started := time.Now()
	log.Printf("Importing the newest %d catalog pages", j.pages)

	stats, err := j.runner.Run(ctx, importer.Options{
		PageStart:    1,
		PageEnd:      j.pages,
		SkipExisting: true,
	})

	res := &Result{Stats: stats, StartedAt: started, FinishedAt: time.Now()}
	if err != nil {
		res.Error = err.Error()
	}

	j.mu.Lock()
	j.running = false
	j.last = res
	j.mu.Unlock()

	if j.notifier != nil {
		if nerr := j.notifier.NotifyImportResult(stats, err); nerr != nil {
			log.Printf("Failed to send import notification: %v", nerr)
		}
	}

	return err
}

// Running reports whether an import is in progress.
func (j *ImportJob) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// LastResult returns the most recent finished import, if any.
func (j *ImportJob) LastResult() (Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.last == nil {
		return Result{}, false
	}
	return *j.last, true
}
