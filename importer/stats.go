package importer

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Stage names the step of the movie pipeline an error came from.
type Stage string

const (
	StageExists   Stage = "exists"
	StageFetch    Stage = "fetch"
	StageValidate Stage = "validate"
	StageInsert   Stage = "insert"
	StageEpisode  Stage = "episode"
)

type MovieError struct {
	Slug    string `json:"slug"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Stats accumulates the counters of one run. It is owned by the run that
// creates it and must not be read until Run returns.
type Stats struct {
	RunID            string        `json:"run_id"`
	PagesProcessed   int           `json:"pages_processed"`
	MoviesProcessed  int           `json:"movies_processed"`
	MoviesImported   int           `json:"movies_imported"`
	MoviesSkipped    int           `json:"movies_skipped"`
	MoviesFailed     int           `json:"movies_failed"`
	EpisodesImported int           `json:"episodes_imported"`
	EpisodesSkipped  int           `json:"episodes_skipped"`
	EpisodesFailed   int           `json:"episodes_failed"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	Errors           []MovieError  `json:"errors"`
}

func newStats(runID string) *Stats {
	return &Stats{RunID: runID, StartedAt: time.Now(), Errors: []MovieError{}}
}

func (s *Stats) finish() {
	s.Duration = time.Since(s.StartedAt)
}

func (s *Stats) movieFailed(slug string, stage Stage, err error) {
	s.MoviesFailed++
	s.Errors = append(s.Errors, MovieError{Slug: slug, Stage: stage, Message: err.Error()})
}

func (s *Stats) episodeFailed(slug string, err error) {
	s.EpisodesFailed++
	s.Errors = append(s.Errors, MovieError{Slug: slug, Stage: StageEpisode, Message: err.Error()})
}

// HasFailures reports whether any movie failed. Episode failures alone do not
// fail a run.
func (s *Stats) HasFailures() bool {
	return s.MoviesFailed > 0
}

// WriteSummary prints the totals and every recorded error.
func (s *Stats) WriteSummary(w io.Writer) error {
	var b strings.Builder

	b.WriteString("\n=== Import summary ===\n")
	fmt.Fprintf(&b, "Run:               %s\n", s.RunID)
	fmt.Fprintf(&b, "Duration:          %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Pages processed:   %d\n", s.PagesProcessed)
	fmt.Fprintf(&b, "Movies processed:  %d\n", s.MoviesProcessed)
	fmt.Fprintf(&b, "  imported:        %d\n", s.MoviesImported)
	fmt.Fprintf(&b, "  skipped:         %d\n", s.MoviesSkipped)
	fmt.Fprintf(&b, "  failed:          %d\n", s.MoviesFailed)
	fmt.Fprintf(&b, "Episodes imported: %d\n", s.EpisodesImported)
	fmt.Fprintf(&b, "  skipped:         %d\n", s.EpisodesSkipped)
	fmt.Fprintf(&b, "  failed:          %d\n", s.EpisodesFailed)

	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors (%d):\n", len(s.Errors))
		for i, e := range s.Errors {
			fmt.Fprintf(&b, "  %d. [%s] %s: %s\n", i+1, e.Stage, e.Slug, e.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
