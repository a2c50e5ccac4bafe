// Package scheduler implements Scheduler: the set of CronJobs, their
// schedule kind (CRON/EVERY/AT), and a single ticker that fires due
// jobs and routes a synthetic user message into the agent runtime.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ScheduleKind enumerates the three schedule shapes a CronJob can carry.
type ScheduleKind string

const (
	KindCron  ScheduleKind = "CRON"
	KindEvery ScheduleKind = "EVERY"
	KindAt    ScheduleKind = "AT"
)

// Schedule is the tagged-union schedule descriptor: CRON(expr),
// EVERY(intervalMs), or AT(timestampMs).
type Schedule struct {
	Kind    ScheduleKind `json:"kind"`
	Expr    string       `json:"expr,omitempty"`
	EveryMs int64        `json:"everyMs,omitempty"`
	AtMs    int64        `json:"atMs,omitempty"`
}

// Next computes the next run time after now. The bool return is false
// when the schedule has no further occurrence (an AT job that already
// fired).
func (s Schedule) Next(now time.Time) (time.Time, bool, error) {
	switch s.Kind {
	case KindCron:
		if s.Expr == "" {
			return time.Time{}, false, fmt.Errorf("cron schedule missing expression")
		}
		sched, err := cronParser.Parse(s.Expr)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse cron expression: %w", err)
		}
		next := sched.Next(now)
		return next, !next.IsZero(), nil
	case KindEvery:
		if s.EveryMs <= 0 {
			return time.Time{}, false, fmt.Errorf("every schedule missing interval")
		}
		return now.Add(time.Duration(s.EveryMs) * time.Millisecond), true, nil
	case KindAt:
		if s.AtMs == 0 {
			return time.Time{}, false, fmt.Errorf("at schedule missing timestamp")
		}
		at := time.UnixMilli(s.AtMs)
		if now.After(at) {
			return time.Time{}, false, nil
		}
		return at, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}

// Payload is what a firing job hands to the agent runtime.
type Payload struct {
	Message string `json:"message"`
	Deliver bool   `json:"deliver"`
	Channel string `json:"channel,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
}

// State tracks a job's run history.
type State struct {
	NextRunAtMs int64  `json:"nextRunAtMs"`
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"` // "ok" | "error"
	LastError   string `json:"lastError,omitempty"`
}

// CronJob is one scheduled job.
type CronJob struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Schedule Schedule `json:"schedule"`
	Payload  Payload  `json:"payload"`
	State    State    `json:"state"`
	Enabled  bool     `json:"enabled"`

	inFlight bool
}

// AgentRunner is the subset of AgentLoop the scheduler drives. Jobs with
// a channel/chatId call RunForChannel; otherwise RunDirect with a
// dedicated "cron:<jobId>" session key.
type AgentRunner interface {
	RunDirect(ctx context.Context, sessionKey, message string) (string, error)
	RunForChannel(ctx context.Context, channel, chatID, message string) (string, error)
}

// Deliverer emits a job's result text to a channel when payload.deliver
// is set, via the same path as the `message` tool.
type Deliverer interface {
	Deliver(channel, chatID, content string) error
}

type document struct {
	Jobs []*CronJob `json:"jobs"`
}

// Scheduler owns the CronJob set and its backing document. The job
// list uses a read-write lock; the tick reads under a read lock, then
// upgrades to write for state updates. A firing job is marked
// in-flight so a concurrent tick never re-fires it.
type Scheduler struct {
	mu       sync.RWMutex
	jobs     map[string]*CronJob
	path     string
	runner   AgentRunner
	deliver  Deliverer
	log      *slog.Logger
	tick     time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	nowFn    func() time.Time
}

// New constructs a Scheduler backed by the JSON document at path (empty
// disables persistence). runner and deliver may be nil at construction
// and wired later via SetRunner/SetDeliverer.
func New(path string, runner AgentRunner, deliver Deliverer) (*Scheduler, error) {
	s := &Scheduler{
		jobs:    make(map[string]*CronJob),
		path:    path,
		runner:  runner,
		deliver: deliver,
		log:     slog.Default().With("component", "scheduler"),
		tick:    time.Second,
		nowFn:   time.Now,
	}
	if path != "" {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("load cron document: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) SetRunner(r AgentRunner)     { s.mu.Lock(); s.runner = r; s.mu.Unlock() }
func (s *Scheduler) SetDeliverer(d Deliverer)    { s.mu.Lock(); s.deliver = d; s.mu.Unlock() }

func (s *Scheduler) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn("cron document corrupt, starting empty", "error", err)
		return nil
	}
	for _, j := range doc.Jobs {
		s.jobs[j.ID] = j
	}
	return nil
}

// save persists the current job set atomically: write to a temp file
// in the same directory, fsync, then rename over the target.
func (s *Scheduler) save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	doc := document{Jobs: make([]*CronJob, 0, len(s.jobs))}
	for _, j := range s.jobs {
		cp := *j
		doc.Jobs = append(doc.Jobs, &cp)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "jobs-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Add creates a job, validating its schedule and computing the first
// nextRunAtMs. Returns ScheduleError-shaped errors for a bad schedule.
func (s *Scheduler) Add(job *CronJob) error {
	next, ok, err := job.Schedule.Next(s.nowFn())
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	if !ok {
		return fmt.Errorf("schedule has no future occurrence")
	}
	job.State.NextRunAtMs = next.UnixMilli()

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return s.save()
}

func (s *Scheduler) List() []*CronJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CronJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out
}

func (s *Scheduler) setEnabled(id string, enabled bool) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("job %q not found", id)
	}
	j.Enabled = enabled
	s.mu.Unlock()
	return s.save()
}

func (s *Scheduler) Enable(id string) error  { return s.setEnabled(id, true) }
func (s *Scheduler) Disable(id string) error { return s.setEnabled(id, false) }

func (s *Scheduler) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not found", id)
	}
	return s.save()
}

// Start runs the ticker loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tickOnce(runCtx)
			}
		}
	}()
}

// Stop cancels the ticker loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) tickOnce(ctx context.Context) {
	now := s.nowFn()

	s.mu.RLock()
	due := make([]*CronJob, 0)
	for _, j := range s.jobs {
		if j.Enabled && !j.inFlight && j.State.NextRunAtMs != 0 && j.State.NextRunAtMs <= now.UnixMilli() {
			due = append(due, j)
		}
	}
	s.mu.RUnlock()

	for _, j := range due {
		s.mu.Lock()
		if j.inFlight {
			s.mu.Unlock()
			continue
		}
		j.inFlight = true
		s.mu.Unlock()

		s.fire(ctx, j, now)

		s.mu.Lock()
		j.inFlight = false
		s.mu.Unlock()
	}
}

func (s *Scheduler) fire(ctx context.Context, job *CronJob, now time.Time) {
	s.mu.Lock()
	job.State.LastRunAtMs = now.UnixMilli()
	next, hasNext, err := job.Schedule.Next(now)
	if err != nil {
		job.State.LastStatus = "error"
		job.State.LastError = err.Error()
		job.Enabled = false
		job.State.NextRunAtMs = 0
	} else if hasNext {
		job.State.NextRunAtMs = next.UnixMilli()
	} else {
		job.Enabled = false
		job.State.NextRunAtMs = 0
	}
	runner := s.runner
	deliver := s.deliver
	payload := job.Payload
	sessionKey := "cron:" + job.ID
	s.mu.Unlock()

	// Persist the advanced nextRunAtMs before invoking the handler: a
	// crash mid-handler must not leave a due job's schedule state
	// unsaved, or it double-fires on restart.
	if err := s.save(); err != nil {
		s.log.Warn("cron document save failed", "job_id", job.ID, "error", err)
	}

	if runner == nil {
		s.log.Warn("cron job fired with no agent runner configured", "job_id", job.ID)
		return
	}

	var (
		result string
		runErr error
	)
	if payload.Channel != "" && payload.ChatID != "" {
		result, runErr = runner.RunForChannel(ctx, payload.Channel, payload.ChatID, payload.Message)
	} else {
		result, runErr = runner.RunDirect(ctx, sessionKey, payload.Message)
	}

	s.mu.Lock()
	if runErr != nil {
		job.State.LastStatus = "error"
		job.State.LastError = runErr.Error()
	} else {
		job.State.LastStatus = "ok"
		job.State.LastError = ""
	}
	s.mu.Unlock()

	if err := s.save(); err != nil {
		s.log.Warn("cron document save failed", "job_id", job.ID, "error", err)
	}

	if runErr != nil {
		s.log.Warn("cron job run failed", "job_id", job.ID, "error", runErr)
		return
	}
	if payload.Deliver && deliver != nil && payload.Channel != "" && payload.ChatID != "" {
		if err := deliver.Deliver(payload.Channel, payload.ChatID, result); err != nil {
			s.log.Warn("cron job delivery failed", "job_id", job.ID, "error", err)
		}
	}
}
