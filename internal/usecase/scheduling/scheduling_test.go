package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"@hourly", false},
		{"@every 10m", false},
		{"30m", false},
		{"", true},
		{"-1s", true},
		{"0s", true},
		{"sometimes", true},
	}
	for _, tt := range tests {
		_, err := ParseSchedule(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSchedule(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestConstantDelayNext(t *testing.T) {
	sched, err := ParseSchedule("1500ms")
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := sched.Next(base); !got.Equal(base.Add(1500 * time.Millisecond)) {
		t.Errorf("Next = %v", got)
	}
}

func TestAddTaskUnknownAction(t *testing.T) {
	s := NewScheduler(quietLogger())
	err := s.AddTask(ScheduledTask{Name: "x", Schedule: "1m", Action: ActionAuditRetention})
	if err == nil {
		t.Fatal("expected error for unregistered action")
	}
}

func TestAddTaskInvalidSchedule(t *testing.T) {
	s := NewScheduler(quietLogger())
	s.RegisterAction(ActionSessionReport, func(context.Context) error { return nil })
	if err := s.AddTask(ScheduledTask{Name: "x", Schedule: "bogus", Action: ActionSessionReport}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSchedulerRunsTasks(t *testing.T) {
	s := NewScheduler(quietLogger())
	var runs atomic.Int32
	var failures atomic.Int32
	s.RegisterAction(ActionSessionReport, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("task context should carry a deadline")
		}
		runs.Add(1)
		return nil
	})
	s.RegisterAction(ActionAuditRetention, func(context.Context) error {
		failures.Add(1)
		return errors.New("disk full")
	})
	if err := s.AddTask(ScheduledTask{Name: "report", Schedule: "20ms", Action: ActionSessionReport}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddTask(ScheduledTask{Name: "retention", Schedule: "20ms", Action: ActionAuditRetention}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op
	deadline := time.Now().Add(3 * time.Second)
	for (runs.Load() < 2 || failures.Load() < 1) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()

	if runs.Load() < 2 {
		t.Errorf("report ran %d times, want at least 2", runs.Load())
	}
	if failures.Load() < 1 {
		t.Error("failing task should still be scheduled")
	}

	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	if runs.Load() != after {
		t.Error("tasks ran after Stop")
	}
	s.Stop() // idempotent
}
