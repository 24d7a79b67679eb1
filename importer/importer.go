// Package importer crawls the catalog page by page and writes new movies and
// their episodes to the store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"phimgg-importer/checkpoint"
	"phimgg-importer/ophim"
	"phimgg-importer/resilience"
	"phimgg-importer/storage"
	"phimgg-importer/transform"
)

const DefaultSource = "ophim"

// Source is the catalog being imported.
type Source interface {
	FetchMovieList(ctx context.Context, page int) (*ophim.ListPage, error)
	FetchMovieDetail(ctx context.Context, slug string) (*ophim.MovieDetail, error)
}

// Store is where imported movies go.
type Store interface {
	MovieExists(ctx context.Context, slug string) (bool, error)
	InsertMovie(ctx context.Context, movie *storage.Movie) (int64, error)
	InsertEpisode(ctx context.Context, episode *storage.Episode) error
}

type Config struct {
	Limiter *resilience.Limiter
	Retry   resilience.RetryPolicy
	// Checkpoints is optional. Without it runs cannot be resumed.
	Checkpoints checkpoint.Store
	// SourceName is recorded in checkpoints. Defaults to "ophim".
	SourceName string
	Logger     *log.Logger
}

type Options struct {
	PageStart    int
	PageEnd      int
	SkipExisting bool
	ValidateOnly bool
	Verbose      bool
	Resume       bool
}

func (o Options) Validate() error {
	if o.PageStart < 1 {
		return fmt.Errorf("start page must be >= 1, got %d", o.PageStart)
	}
	if o.PageEnd < o.PageStart {
		return fmt.Errorf("end page %d is before start page %d", o.PageEnd, o.PageStart)
	}
	return nil
}

// PageError aborts a run: a list page that cannot be fetched after retries
// points at an upstream problem, so the run stops instead of skipping it.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("failed to fetch page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

type Importer struct {
	source      Source
	store       Store
	limiter     *resilience.Limiter
	retry       resilience.RetryPolicy
	checkpoints checkpoint.Store
	sourceName  string
	logger      *log.Logger
}

func New(source Source, store Store, cfg Config) *Importer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	name := cfg.SourceName
	if name == "" {
		name = DefaultSource
	}
	return &Importer{
		source:      source,
		store:       store,
		limiter:     cfg.Limiter,
		retry:       cfg.Retry,
		checkpoints: cfg.Checkpoints,
		sourceName:  name,
		logger:      logger,
	}
}

// Run imports the page range in opts. The returned stats are always non-nil
// once the options are valid, also when the run stops early with an error.
func (im *Importer) Run(ctx context.Context, opts Options) (*Stats, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	stats := newStats(uuid.NewString())
	defer stats.finish()

	// validate-only runs leave no trace, checkpoints included
	useCheckpoints := im.checkpoints != nil && !opts.ValidateOnly

	start, end := opts.PageStart, opts.PageEnd
	if opts.Resume && useCheckpoints {
		state, err := im.checkpoints.Load(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		next, done := state.ResumeFrom(opts.PageStart, opts.PageEnd)
		if done {
			im.logger.Printf("Pages %d-%d were already imported (run %s), nothing to do", opts.PageStart, opts.PageEnd, state.RunID)
			return stats, nil
		}
		if next > start {
			im.logger.Printf("Resuming run %s from page %d", state.RunID, next)
			if state.RunID != "" {
				stats.RunID = state.RunID
			}
			start = next
		}
	}

	im.logger.Printf("Starting import %s: pages %d-%d (skip existing: %v, validate only: %v)",
		stats.RunID, start, end, opts.SkipExisting, opts.ValidateOnly)

	for page := start; page <= end; page++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		list, err := im.fetchList(ctx, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			im.logger.Printf("Page %d failed, aborting run: %v", page, err)
			return stats, &PageError{Page: page, Err: err}
		}

		if page == start && list.TotalPages > 0 && list.TotalPages < end {
			im.logger.Printf("Catalog only has %d pages, stopping there instead of %d", list.TotalPages, end)
			end = list.TotalPages
		}

		im.logger.Printf("Page %d/%d: %d movies", page, end, len(list.Items))

		for _, item := range list.Items {
			if err := im.processMovie(ctx, item, opts, stats); err != nil {
				return stats, err
			}
		}

		stats.PagesProcessed++

		if useCheckpoints {
			im.saveCheckpoint(ctx, checkpoint.InProgress(stats.RunID, opts.PageStart, opts.PageEnd, page))
		}
	}

	if useCheckpoints {
		im.saveCheckpoint(ctx, checkpoint.Completed(stats.RunID, opts.PageStart, opts.PageEnd))
	}

	im.logger.Printf("Import %s finished: %d imported, %d skipped, %d failed",
		stats.RunID, stats.MoviesImported, stats.MoviesSkipped, stats.MoviesFailed)
	return stats, nil
}

// processMovie handles one list item. Failures are recorded in stats; only a
// cancelled context is returned.
func (im *Importer) processMovie(ctx context.Context, item ophim.MovieListItem, opts Options, stats *Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stats.MoviesProcessed++
	slug := strings.TrimSpace(item.Slug)

	// without a slug there is nothing to look up or fetch
	if slug == "" {
		verr := &transform.ValidationError{Slug: item.Name, Errors: []string{"slug is required"}}
		im.logger.Printf("Invalid list item %q: %v", item.Name, verr)
		stats.movieFailed(slug, StageValidate, verr)
		return nil
	}

	if opts.SkipExisting {
		exists, err := im.store.MovieExists(ctx, slug)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			im.logger.Printf("Failed to check %s: %v", slug, err)
			stats.movieFailed(slug, StageExists, err)
			return nil
		}
		if exists {
			stats.MoviesSkipped++
			if opts.Verbose {
				im.logger.Printf("Skipping %s: already imported", slug)
			}
			return nil
		}
	}

	detail, err := im.fetchDetail(ctx, slug)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		im.logger.Printf("Failed to fetch %s: %v", slug, err)
		stats.movieFailed(slug, StageFetch, err)
		return nil
	}

	res := transform.Transform(*detail)
	if v := transform.ValidateMovie(res.Movie); !v.Valid {
		verr := &transform.ValidationError{Slug: slug, Errors: v.Errors}
		im.logger.Printf("Invalid movie %s: %v", slug, verr)
		stats.movieFailed(slug, StageValidate, verr)
		return nil
	}

	if opts.ValidateOnly {
		for _, ep := range res.Episodes {
			if v := transform.ValidateEpisode(ep); !v.Valid {
				stats.episodeFailed(slug, &transform.ValidationError{Slug: episodeKey(ep), Errors: v.Errors})
				continue
			}
			stats.EpisodesImported++
		}
		stats.MoviesImported++
		if opts.Verbose {
			im.logger.Printf("Validated %s (%d episodes)", slug, len(res.Episodes))
		}
		return nil
	}

	movieID, err := im.store.InsertMovie(ctx, &res.Movie)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		im.logger.Printf("Failed to insert %s: %v", slug, err)
		stats.movieFailed(slug, StageInsert, err)
		return nil
	}

	imported, skipped := 0, 0
	for i := range res.Episodes {
		ep := &res.Episodes[i]
		ep.MovieID = movieID

		if v := transform.ValidateEpisode(*ep); !v.Valid {
			stats.episodeFailed(slug, &transform.ValidationError{Slug: episodeKey(*ep), Errors: v.Errors})
			continue
		}

		err := im.store.InsertEpisode(ctx, ep)
		switch {
		case err == nil:
			imported++
			stats.EpisodesImported++
		case errors.Is(err, storage.ErrConflict):
			skipped++
			stats.EpisodesSkipped++
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			im.logger.Printf("Failed to insert episode %s of %s: %v", episodeKey(*ep), slug, err)
			stats.episodeFailed(slug, err)
		}
	}

	stats.MoviesImported++
	if opts.Verbose {
		im.logger.Printf("Imported %s: %d episodes (%d duplicates)", slug, imported, skipped)
	}
	return nil
}

func (im *Importer) fetchList(ctx context.Context, page int) (*ophim.ListPage, error) {
	policy := im.policy(fmt.Sprintf("page %d", page))
	return resilience.Retry(ctx, policy, func(ctx context.Context) (*ophim.ListPage, error) {
		return resilience.Execute(ctx, im.limiter, func(ctx context.Context) (*ophim.ListPage, error) {
			return im.source.FetchMovieList(ctx, page)
		})
	})
}

func (im *Importer) fetchDetail(ctx context.Context, slug string) (*ophim.MovieDetail, error) {
	policy := im.policy(slug)
	return resilience.Retry(ctx, policy, func(ctx context.Context) (*ophim.MovieDetail, error) {
		return resilience.Execute(ctx, im.limiter, func(ctx context.Context) (*ophim.MovieDetail, error) {
			return im.source.FetchMovieDetail(ctx, slug)
		})
	})
}

func (im *Importer) policy(what string) resilience.RetryPolicy {
	p := im.retry
	if p.OnRetry == nil {
		p.OnRetry = func(attempt int, err error) {
			im.logger.Printf("Retrying %s (%d/%d): %v", what, attempt, p.MaxRetries, err)
		}
	}
	return p
}

// saveCheckpoint logs and carries on when the checkpoint cannot be written:
// the imported rows are already stored and a rerun skips them.
func (im *Importer) saveCheckpoint(ctx context.Context, state checkpoint.RunState) {
	state.Source = im.sourceName
	if err := im.checkpoints.Save(ctx, state); err != nil {
		im.logger.Printf("Warning: failed to save checkpoint: %v", err)
	}
}

func episodeKey(ep storage.Episode) string {
	return ep.ServerName + "/" + ep.Slug
}
