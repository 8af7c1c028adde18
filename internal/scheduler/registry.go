package scheduler

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Registry stores named Schedules and parses their cron expressions.
type Registry struct {
	mu        sync.RWMutex
	schedules map[string]*Schedule
	parser    cron.Parser
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		schedules: make(map[string]*Schedule),
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Register validates and adds s, defaulting Timezone to UTC.
func (r *Registry) Register(s *Schedule) error {
	if err := r.validate(s); err != nil {
		return fmt.Errorf("jetqueue: invalid schedule: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schedules[s.ID]; exists {
		return fmt.Errorf("jetqueue: schedule %q already registered", s.ID)
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	r.schedules[s.ID] = s
	return nil
}

// MustRegister registers s, panicking on error. Intended for init-time use.
func (r *Registry) MustRegister(s *Schedule) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get returns the schedule with id, if registered.
func (r *Registry) Get(id string) (*Schedule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedules[id]
	return s, ok
}

// List returns every registered schedule, in no particular order.
func (r *Registry) List() []*Schedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schedule, 0, len(r.schedules))
	for _, s := range r.schedules {
		out = append(out, s)
	}
	return out
}

// Count returns the number of registered schedules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schedules)
}

// NextRun computes the next fire time for s strictly after `after`, in the
// schedule's own timezone.
func (r *Registry) NextRun(s *Schedule, after time.Time) (time.Time, error) {
	parsed, err := r.parser.Parse(s.Cron)
	if err != nil {
		return time.Time{}, fmt.Errorf("jetqueue: parsing cron expression %q: %w", s.Cron, err)
	}

	loc := time.UTC
	if s.Timezone != "" && s.Timezone != "UTC" {
		loc, err = time.LoadLocation(s.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("jetqueue: invalid timezone %q: %w", s.Timezone, err)
		}
	}

	return parsed.Next(after.In(loc)), nil
}

func (r *Registry) validate(s *Schedule) error {
	if s.ID == "" {
		return fmt.Errorf("schedule ID cannot be empty")
	}
	if !scheduleIDPattern.MatchString(s.ID) {
		return fmt.Errorf("schedule ID must be alphanumeric, underscores, or hyphens")
	}
	if s.Cron == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := r.parser.Parse(s.Cron); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
	}
	if s.JobName == "" {
		return fmt.Errorf("job name cannot be empty")
	}
	if s.Timezone != "" && s.Timezone != "UTC" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}
	return nil
}
