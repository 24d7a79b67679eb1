package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Mock job for testing
type MockJob struct {
	name     string
	runCount atomic.Int32
}

func (j *MockJob) Name() string {
	return j.name
}

func (j *MockJob) Run(ctx context.Context) error {
	j.runCount.Add(1)
	return nil
}

func TestScheduler(t *testing.T) {
	s := NewScheduler()
	mockJob := &MockJob{name: "test_job"}

	// Run every second
	err := s.AddJob("* * * * * *", mockJob)
	if err != nil {
		t.Fatalf("Failed to add job: %v", err)
	}

	s.Start()
	defer s.Stop()

	time.Sleep(2 * time.Second)

	if mockJob.runCount.Load() == 0 {
		t.Error("Job did not run")
	}

	before := mockJob.runCount.Load()
	err = s.RunJobNow("test_job")
	if err != nil {
		t.Fatalf("Failed to run job now: %v", err)
	}

	if mockJob.runCount.Load() < before+1 {
		t.Errorf("RunJobNow did not increment run count")
	}

	err = s.RunJobNow("non_existent_job")
	if err == nil {
		t.Error("Running non-existent job should have failed")
	}
}

func TestAddJobTwice(t *testing.T) {
	s := NewScheduler()
	job := &MockJob{name: "dup"}

	if err := s.AddJob("0 0 3 * * *", job); err != nil {
		t.Fatalf("Failed to add job: %v", err)
	}
	if err := s.AddJob("0 0 4 * * *", job); err == nil {
		t.Error("Registering the same job twice should fail")
	}
}

func TestAddJobInvalidSpec(t *testing.T) {
	s := NewScheduler()
	if err := s.AddJob("every day", &MockJob{name: "bad"}); err == nil {
		t.Error("Invalid cron spec should be rejected")
	}
}

func TestNextRun(t *testing.T) {
	s := NewScheduler()
	job := &MockJob{name: "daily"}

	if err := s.AddJob("0 0 3 * * *", job); err != nil {
		t.Fatalf("Failed to add job: %v", err)
	}
	if !s.NextRun("unknown").IsZero() {
		t.Error("Unknown job should have no next run")
	}

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	var next time.Time
	for time.Now().Before(deadline) {
		if next = s.NextRun("daily"); !next.IsZero() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if next.IsZero() {
		t.Fatal("Expected next run to be scheduled")
	}
	if next.Hour() != 3 || next.Minute() != 0 {
		t.Errorf("Expected next run at 03:00, got %s", next)
	}
	if !next.After(time.Now()) {
		t.Errorf("Next run %s is not in the future", next)
	}
}

type blockingJob struct {
	started chan struct{}
	once    sync.Once
}

func (j *blockingJob) Name() string {
	return "blocking_job"
}

func (j *blockingJob) Run(ctx context.Context) error {
	j.once.Do(func() { close(j.started) })
	<-ctx.Done()
	return ctx.Err()
}

func TestStopCancelsRunningJob(t *testing.T) {
	s := NewScheduler()
	s.SetJobTimeout(time.Hour)
	job := &blockingJob{started: make(chan struct{})}

	if err := s.AddJob("* * * * * *", job); err != nil {
		t.Fatalf("Failed to add job: %v", err)
	}
	s.Start()

	select {
	case <-job.started:
	case <-time.After(3 * time.Second):
		s.Stop()
		t.Fatal("Job never started")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return while a job was running")
	}
}
