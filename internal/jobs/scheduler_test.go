package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/queue"
)

type fakeWatchers map[string][]string

func (f fakeWatchers) Active(_ context.Context, view string) ([]string, error) {
	return f[view], nil
}

type fakeQueue struct {
	tasks []queue.Task
	err   error
}

func (f *fakeQueue) Enqueue(_ context.Context, t queue.Task) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, t)
	return nil
}

type fakeSweeper struct {
	idle time.Duration
}

func (f *fakeSweeper) Sweep(idle time.Duration) int {
	f.idle = idle
	return 2
}

func TestEvery_ParsesWithSecondsParser(t *testing.T) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, d := range []time.Duration{2 * time.Second, 10 * time.Second, 30 * time.Second} {
		sched, err := parser.Parse(Every(d))
		if err != nil {
			t.Fatalf("parse %s: %v", Every(d), err)
		}
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		if got := sched.Next(start).Sub(start); got != d {
			t.Fatalf("expected %s between runs, got %s", d, got)
		}
	}
}

func TestEnqueueRefresh_OneTaskPerWatcher(t *testing.T) {
	q := &fakeQueue{}
	s := NewScheduler(Options{
		Watchers: fakeWatchers{"clock": {"dev-1", "dev-2"}},
		Queue:    q,
	}, zerolog.Nop())

	s.enqueueRefresh("clock")
	s.enqueueRefresh("meals")

	if len(q.tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(q.tasks))
	}
	for i, dev := range []string{"dev-1", "dev-2"} {
		want := queue.Task{Type: queue.TaskRefresh, View: "clock", DeviceID: dev}
		if q.tasks[i] != want {
			t.Fatalf("task %d: expected %+v, got %+v", i, want, q.tasks[i])
		}
	}
}

func TestEnqueueRefresh_StopsOnQueueError(t *testing.T) {
	q := &fakeQueue{err: errors.New("down")}
	s := NewScheduler(Options{
		Watchers: fakeWatchers{"clock": {"dev-1", "dev-2"}},
		Queue:    q,
	}, zerolog.Nop())

	s.enqueueRefresh("clock")
	if len(q.tasks) != 0 {
		t.Fatalf("expected no tasks")
	}
}

func TestSweepSessions_UsesIdleTimeout(t *testing.T) {
	sw := &fakeSweeper{}
	s := NewScheduler(Options{Sessions: sw, Idle: 30 * time.Minute}, zerolog.Nop())

	s.sweepSessions()
	if sw.idle != 30*time.Minute {
		t.Fatalf("expected 30m idle, got %s", sw.idle)
	}
}
