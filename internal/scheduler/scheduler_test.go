package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRunner struct {
	calls int32
	last  string
}

func (f *fakeRunner) RunDirect(ctx context.Context, sessionKey, message string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.last = message
	return "ok: " + message, nil
}

func (f *fakeRunner) RunForChannel(ctx context.Context, channel, chatID, message string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return "ok", nil
}

type fakeDeliverer struct {
	delivered []string
}

func (f *fakeDeliverer) Deliver(channel, chatID, content string) error {
	f.delivered = append(f.delivered, content)
	return nil
}

func TestAddRejectsBadSchedule(t *testing.T) {
	s, err := New("", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	job := &CronJob{ID: "j1", Schedule: Schedule{Kind: KindCron, Expr: "not a cron expr !!"}, Enabled: true}
	if err := s.Add(job); err == nil {
		t.Fatal("expected a schedule error")
	}
}

func TestEveryJobFiresRepeatedlyWithoutDoubleFire(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New("", runner, nil)
	if err != nil {
		t.Fatal(err)
	}
	job := &CronJob{
		ID:       "j1",
		Schedule: Schedule{Kind: KindEvery, EveryMs: 10},
		Payload:  Payload{Message: "tick"},
		Enabled:  true,
	}
	if err := s.Add(job); err != nil {
		t.Fatal(err)
	}

	first := s.List()[0].State.NextRunAtMs
	// Advance the clock to the first due time.
	s.nowFn = func() time.Time { return time.UnixMilli(first) }
	s.tickOnce(context.Background())
	if runner.calls != 1 {
		t.Fatalf("expected 1 call, got %d", runner.calls)
	}
	second := s.List()[0].State.NextRunAtMs
	if second <= first {
		t.Fatalf("nextRunAtMs must strictly increase across firings: first=%d second=%d", first, second)
	}

	// A second tick before the interval elapses must not fire again.
	s.tickOnce(context.Background())
	if runner.calls != 1 {
		t.Fatalf("expected no double-fire, got %d calls", runner.calls)
	}
}

func TestAtJobDisablesAfterFiring(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New("", runner, nil)
	if err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(5 * time.Millisecond).UnixMilli()
	job := &CronJob{
		ID:       "j1",
		Schedule: Schedule{Kind: KindAt, AtMs: future},
		Payload:  Payload{Message: "once"},
		Enabled:  true,
	}
	if err := s.Add(job); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	s.tickOnce(context.Background())
	if runner.calls != 1 {
		t.Fatalf("expected 1 call, got %d", runner.calls)
	}
	if s.List()[0].Enabled {
		t.Fatal("AT job should be disabled after firing")
	}
}

func TestDeliverInvokedWhenPayloadRequestsIt(t *testing.T) {
	runner := &fakeRunner{}
	deliver := &fakeDeliverer{}
	s, err := New("", runner, deliver)
	if err != nil {
		t.Fatal(err)
	}
	job := &CronJob{
		ID:       "j1",
		Schedule: Schedule{Kind: KindEvery, EveryMs: 10},
		Payload:  Payload{Message: "hi", Deliver: true, Channel: "telegram", ChatID: "42"},
		Enabled:  true,
	}
	if err := s.Add(job); err != nil {
		t.Fatal(err)
	}
	due := s.List()[0].State.NextRunAtMs
	s.nowFn = func() time.Time { return time.UnixMilli(due) }
	s.tickOnce(context.Background())
	if len(deliver.delivered) != 1 {
		t.Fatalf("expected one delivery, got %d", len(deliver.delivered))
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")

	s, err := New(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	job := &CronJob{ID: "j1", Name: "n", Schedule: Schedule{Kind: KindEvery, EveryMs: 1000}, Enabled: true}
	if err := s.Add(job); err != nil {
		t.Fatal(err)
	}

	s2, err := New(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	jobs := s2.List()
	if len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Fatalf("expected job to round-trip, got %+v", jobs)
	}
}

func TestEnableDisableDelete(t *testing.T) {
	s, err := New("", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	job := &CronJob{ID: "j1", Schedule: Schedule{Kind: KindEvery, EveryMs: 1000}, Enabled: true}
	if err := s.Add(job); err != nil {
		t.Fatal(err)
	}

	if err := s.Disable("j1"); err != nil {
		t.Fatal(err)
	}
	if s.List()[0].Enabled {
		t.Fatal("expected job to be disabled")
	}
	if err := s.Enable("j1"); err != nil {
		t.Fatal(err)
	}
	if !s.List()[0].Enabled {
		t.Fatal("expected job to be enabled")
	}
	if err := s.Delete("j1"); err != nil {
		t.Fatal(err)
	}
	if len(s.List()) != 0 {
		t.Fatal("expected job to be deleted")
	}
	if err := s.Delete("j1"); err == nil {
		t.Fatal("expected an error deleting an already-deleted job")
	}
}
