// Package keys names every Redis key used by a single queue, per
// spec.md §4.1.
package keys

import "strings"

// Space holds the pre-computed Redis keys for one (prefix, queue name) pair.
// Computing them once avoids repeated string concatenation on every command,
// the same trade the teacher repo's RedisQueue makes for its own key set.
type Space struct {
	Waiting   string
	Active    string
	Delayed   string
	Paused    string
	jobPrefix string
}

// New builds the key space for queue `name` under prefix `prefix`.
// A colon is appended to a bare prefix so "jet" and "jet:" behave alike.
func New(prefix, name string) Space {
	if prefix == "" {
		prefix = "jet"
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	base := prefix + name + ":"
	return Space{
		Waiting:   base + "waiting",
		Active:    base + "active",
		Delayed:   base + "delayed",
		Paused:    base + "paused",
		jobPrefix: base + "job:",
	}
}

// Job returns the hash key holding the job record for id.
func (s Space) Job(id string) string {
	var b strings.Builder
	b.Grow(len(s.jobPrefix) + len(id))
	b.WriteString(s.jobPrefix)
	b.WriteString(id)
	return b.String()
}

// JobPrefix returns the shared prefix passed to moveToActive so the script
// can build a job key server-side without a round trip per id.
func (s Space) JobPrefix() string {
	return s.jobPrefix
}
