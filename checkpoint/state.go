// Package checkpoint records how far an import run got, so an interrupted run
// can continue from the next unprocessed page.
package checkpoint

import (
	"context"
	"fmt"
	"time"
)

// Version is the only run-state layout this package reads or writes.
const Version = 1

type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
)

// RunState is the persisted progress of one import over a page range.
//
//	not_started  nothing recorded
//	in_progress  pages PageStart..LastCompletedPage are done
//	completed    the whole range is done
type RunState struct {
	Version           int       `json:"version"`
	RunID             string    `json:"run_id,omitempty"`
	Source            string    `json:"source,omitempty"`
	Phase             Phase     `json:"phase"`
	PageStart         int       `json:"page_start,omitempty"`
	PageEnd           int       `json:"page_end,omitempty"`
	LastCompletedPage int       `json:"last_completed_page,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Store loads and saves the run state.
type Store interface {
	Load(ctx context.Context) (RunState, error)
	Save(ctx context.Context, state RunState) error
}

func NotStarted() RunState {
	return RunState{Version: Version, Phase: PhaseNotStarted}
}

func InProgress(runID string, pageStart, pageEnd, lastCompleted int) RunState {
	return RunState{
		Version:           Version,
		RunID:             runID,
		Phase:             PhaseInProgress,
		PageStart:         pageStart,
		PageEnd:           pageEnd,
		LastCompletedPage: lastCompleted,
		UpdatedAt:         time.Now().UTC(),
	}
}

func Completed(runID string, pageStart, pageEnd int) RunState {
	return RunState{
		Version:           Version,
		RunID:             runID,
		Phase:             PhaseCompleted,
		PageStart:         pageStart,
		PageEnd:           pageEnd,
		LastCompletedPage: pageEnd,
		UpdatedAt:         time.Now().UTC(),
	}
}

// Validate reports whether the state is internally consistent.
func (s RunState) Validate() error {
	if s.Version != Version {
		return fmt.Errorf("unsupported run state version %d", s.Version)
	}

	switch s.Phase {
	case PhaseNotStarted:
		return nil
	case PhaseInProgress, PhaseCompleted:
	default:
		return fmt.Errorf("unknown phase %q", s.Phase)
	}

	if s.PageStart < 1 || s.PageEnd < s.PageStart {
		return fmt.Errorf("invalid page range %d-%d", s.PageStart, s.PageEnd)
	}
	if s.LastCompletedPage < s.PageStart || s.LastCompletedPage > s.PageEnd {
		return fmt.Errorf("last completed page %d outside range %d-%d", s.LastCompletedPage, s.PageStart, s.PageEnd)
	}
	if s.Phase == PhaseCompleted && s.LastCompletedPage != s.PageEnd {
		return fmt.Errorf("completed state must end at page %d, got %d", s.PageEnd, s.LastCompletedPage)
	}
	return nil
}

// SameRange reports whether the state was recorded for the given page range.
func (s RunState) SameRange(pageStart, pageEnd int) bool {
	return s.PageStart == pageStart && s.PageEnd == pageEnd
}

// ResumeFrom returns the first page still to be processed for the range.
// done is true when the range was already completed. States recorded for a
// different range are ignored and the range starts over.
func (s RunState) ResumeFrom(pageStart, pageEnd int) (next int, done bool) {
	if !s.SameRange(pageStart, pageEnd) {
		return pageStart, false
	}

	switch s.Phase {
	case PhaseCompleted:
		return pageEnd + 1, true
	case PhaseInProgress:
		if s.LastCompletedPage >= pageEnd {
			return pageEnd + 1, true
		}
		return s.LastCompletedPage + 1, false
	default:
		return pageStart, false
	}
}

// CorruptError means a stored run state exists but cannot be trusted.
type CorruptError struct {
	Location string
	Err      error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt checkpoint at %s: %v", e.Location, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }
