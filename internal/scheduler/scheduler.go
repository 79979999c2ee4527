// Package scheduler fires scrape jobs on cron cadences. Expressions
// use the standard five-field form and are evaluated in the
// Europe/Prague time zone, where the portals live.
package scheduler

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Default schedules: an incremental pass every night, a full rescan
// (with deactivation sweep) once a week.
const (
	JobDaily  = "daily_scrape"
	JobWeekly = "weekly_full_rescan"

	DefaultDailyCron  = "0 3 * * *"
	DefaultWeeklyCron = "0 2 * * 0"
)

// Enqueue creates and dispatches a scrape job; the scheduler does not
// care how. Wired to the API's enqueue path by the composition root.
type Enqueue func(fullRescan bool)

// Entry describes one managed schedule.
type Entry struct {
	ID         string     `json:"id"`
	Cron       string     `json:"cron"`
	FullRescan bool       `json:"full_rescan"`
	Paused     bool       `json:"paused"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	PrevRun    *time.Time `json:"prev_run,omitempty"`
}

type managedJob struct {
	spec       string
	fullRescan bool
	paused     bool
	entryID    cron.EntryID
}

// Scheduler wraps robfig/cron with pause/resume and reschedule
// bookkeeping. A nil *Scheduler is a valid no-op, which is how the
// rest of the system sees a disabled scheduler.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]*managedJob
	enqueue Enqueue
}

// New builds a scheduler with the two stock entries. Empty cron
// strings select the defaults; invalid ones are a configuration
// error.
func New(enqueue Enqueue, dailyCron, weeklyCron string) (*Scheduler, error) {
	loc, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		return nil, fmt.Errorf("failed to load Europe/Prague timezone: %w", err)
	}
	if dailyCron == "" {
		dailyCron = DefaultDailyCron
	}
	if weeklyCron == "" {
		weeklyCron = DefaultWeeklyCron
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		jobs:    map[string]*managedJob{},
		enqueue: enqueue,
	}
	if err := s.add(JobDaily, dailyCron, false); err != nil {
		return nil, err
	}
	if err := s.add(JobWeekly, weeklyCron, true); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) add(id, spec string, fullRescan bool) error {
	entryID, err := s.cron.AddFunc(spec, func() { s.fire(id, fullRescan) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for %s: %w", spec, id, err)
	}
	s.jobs[id] = &managedJob{spec: spec, fullRescan: fullRescan, entryID: entryID}
	return nil
}

func (s *Scheduler) fire(id string, fullRescan bool) {
	log.Printf("[scheduler] firing %s (full_rescan=%v)", id, fullRescan)
	s.enqueue(fullRescan)
}

// Start begins firing. No-op on a nil scheduler.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	log.Println("[scheduler] started")
}

// Stop halts the scheduler and waits for a running fire to finish.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
	log.Println("[scheduler] stopped")
}

// Jobs lists the managed schedules with their next and previous fire
// times, sorted by id.
func (s *Scheduler) Jobs() []Entry {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.jobs))
	for id, job := range s.jobs {
		e := Entry{ID: id, Cron: job.spec, FullRescan: job.fullRescan, Paused: job.paused}
		if !job.paused {
			ce := s.cron.Entry(job.entryID)
			if !ce.Next.IsZero() {
				next := ce.Next
				e.NextRun = &next
			}
			if !ce.Prev.IsZero() {
				prev := ce.Prev
				e.PrevRun = &prev
			}
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Pause removes a schedule from the cron loop, keeping its spec so
// Resume can re-add it.
func (s *Scheduler) Pause(id string) error {
	if s == nil {
		return fmt.Errorf("scheduler disabled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("unknown schedule %q", id)
	}
	if job.paused {
		return nil
	}
	s.cron.Remove(job.entryID)
	job.paused = true
	log.Printf("[scheduler] paused %s", id)
	return nil
}

// Resume re-adds a paused schedule with its stored spec.
func (s *Scheduler) Resume(id string) error {
	if s == nil {
		return fmt.Errorf("scheduler disabled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("unknown schedule %q", id)
	}
	if !job.paused {
		return nil
	}
	entryID, err := s.cron.AddFunc(job.spec, func() { s.fire(id, job.fullRescan) })
	if err != nil {
		return fmt.Errorf("failed to resume %s: %w", id, err)
	}
	job.entryID = entryID
	job.paused = false
	log.Printf("[scheduler] resumed %s", id)
	return nil
}

// Reschedule swaps a schedule's cron expression. The new expression
// is validated before the old entry is removed, so a bad expression
// leaves the schedule untouched.
func (s *Scheduler) Reschedule(id, spec string) error {
	if s == nil {
		return fmt.Errorf("scheduler disabled")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("unknown schedule %q", id)
	}
	if !job.paused {
		s.cron.Remove(job.entryID)
		entryID, err := s.cron.AddFunc(spec, func() { s.fire(id, job.fullRescan) })
		if err != nil {
			return fmt.Errorf("failed to reschedule %s: %w", id, err)
		}
		job.entryID = entryID
	}
	job.spec = spec
	log.Printf("[scheduler] rescheduled %s to %q", id, spec)
	return nil
}

// TriggerNow fires a scheduled-style scrape immediately, outside any
// cron cadence.
func (s *Scheduler) TriggerNow(fullRescan bool) error {
	if s == nil {
		return fmt.Errorf("scheduler disabled")
	}
	go s.fire("manual_trigger", fullRescan)
	return nil
}
