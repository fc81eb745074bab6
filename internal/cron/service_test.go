package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/angelmondragon/quoteflow/pkg/logger"
)

type fakeLock struct {
	acquired bool
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger: testLogger(),
		Jobs:   []Job{failing, nil, ok},
		Lock:   lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected both jobs to run once, got success=%d fail=%d", ok.runs, failing.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock released once, got %d", lock.releases)
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "report"}
	service, err := NewService(ServiceParams{
		Logger: testLogger(),
		Jobs:   []Job{job},
		Lock:   &fakeLock{acquired: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d", job.runs)
	}
}

func TestServiceRunCycleSurfacesLockError(t *testing.T) {
	service, err := NewService(ServiceParams{
		Logger: testLogger(),
		Jobs:   []Job{&testJob{name: "report"}},
		Lock:   &fakeLock{err: errors.New("redis down")},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestNewServiceRequiresJobs(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error without jobs")
	}
	if _, err := NewService(ServiceParams{Jobs: []Job{&testJob{}}, Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error without logger")
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "report"}
	service, err := NewService(ServiceParams{
		Logger: testLogger(),
		Jobs:   []Job{job},
		Lock:   &fakeLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the initial cycle to run once, ran %d", job.runs)
	}
}
