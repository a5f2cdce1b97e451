// Package schedule runs recurring jobs inside the server process.
//
//	s := schedule.New()
//	s.Daily().At("00:00").Name("tokens:reset").WithoutOverlapping().Run(job)
//	s.Cron("30 3 * * *").Name("notifications:prune").Run(other)
//	s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/campusbite/canteen/pkg/logger"
)

// Task is one job run. A returned error is logged.
type Task func(ctx context.Context) error

type entry struct {
	id        string
	next      func(after time.Time) time.Time
	describe  string
	task      Task
	noOverlap bool

	mu      sync.Mutex
	running bool
	due     time.Time
	lastRun time.Time
}

// Scheduler holds registered entries and dispatches them once Start is
// called.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	now     func() time.Time
	wg      sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Builder configures one entry until Run registers it.
type Builder struct {
	s   *Scheduler
	e   *entry
	err error
}

// Daily runs once a day at midnight local time unless At moves it.
func (s *Scheduler) Daily() *Builder {
	return s.newBuilder(dailyAt(0, 0), "daily 00:00")
}

// Cron runs on a 5-field expression: minute hour day-of-month month
// day-of-week. Fields accept *, n, */step, a-b and comma lists.
func (s *Scheduler) Cron(expr string) *Builder {
	spec, err := parseCron(expr)
	b := s.newBuilder(spec.next, "cron "+expr)
	b.err = err
	return b
}

func (s *Scheduler) newBuilder(next func(time.Time) time.Time, describe string) *Builder {
	return &Builder{s: s, e: &entry{next: next, describe: describe}}
}

// At pins a daily entry to a HH:MM wall-clock time.
func (b *Builder) At(hhmm string) *Builder {
	h, m, err := ParseClock(hhmm)
	if err != nil {
		b.err = err
		return b
	}
	b.e.next = dailyAt(h, m)
	b.e.describe = "daily " + hhmm
	return b
}

func (b *Builder) WithoutOverlapping() *Builder {
	b.e.noOverlap = true
	return b
}

func (b *Builder) Name(id string) *Builder {
	b.e.id = id
	return b
}

// Run registers fn. It reports a configuration error from At or Cron.
func (b *Builder) Run(fn Task) error {
	if b.err != nil {
		return b.err
	}
	b.e.task = fn

	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.e.due = b.e.next(b.s.now())
	b.s.entries = append(b.s.entries, b.e)
	return nil
}

// ParseClock parses "HH:MM" in 24h form.
func ParseClock(hhmm string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schedule: invalid time %q, want HH:MM", hhmm)
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule: invalid time %q, want HH:MM", hhmm)
	}
	return hour, minute, nil
}

func dailyAt(hour, minute int) func(time.Time) time.Time {
	return func(after time.Time) time.Time {
		t := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
		if !t.After(after) {
			t = time.Date(after.Year(), after.Month(), after.Day()+1, hour, minute, 0, 0, after.Location())
		}
		return t
	}
}

// Start ticks once a second and dispatches due entries until ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
	logger.Info("schedule: started", "entries", len(s.List()))
}

// Wait blocks until running tasks have returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule: stopped")
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick dispatches every entry due at or before now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	current := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	for _, e := range current {
		e.mu.Lock()
		due := !now.Before(e.due)
		if due {
			e.due = e.next(now)
		}
		e.mu.Unlock()
		if due {
			s.dispatch(ctx, e, now)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping run", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", fmt.Sprint(r))
			}
		}()

		start := time.Now()
		if err := e.task(ctx); err != nil {
			logger.Error("schedule: task failed", "id", e.id, "error", err, "took", time.Since(start).String())
			return
		}
		logger.Info("schedule: task done", "id", e.id, "took", time.Since(start).String())
	}()
}

// List describes every entry and its next due time.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		out = append(out, fmt.Sprintf("%s  [%s]  next %s", e.id, e.describe, e.due.Format(time.RFC3339)))
		e.mu.Unlock()
	}
	return out
}
