// Package ratelimit implements a process-local, per-client sliding window
// rate limiter. The window is measured over the trailing interval ending now,
// not aligned to clock buckets: each admitted request is recorded with its
// timestamp and records are pruned on every check, so memory stays bounded
// without a background sweep.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter tracks request timestamps per client key. All access to the record
// set is serialized by a single mutex; races must never corrupt the set,
// though slight over/under-counting under extreme concurrency is acceptable.
type Limiter struct {
	threshold int
	window    time.Duration

	mu      sync.Mutex
	records map[string][]time.Time

	// now is swappable in tests.
	now func() time.Time
}

// Verdict is the outcome of an admission check.
type Verdict struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Stats is a read-only snapshot of limiter activity.
type Stats struct {
	RequestsInWindow int `json:"requests_in_window"`
	DistinctClients  int `json:"distinct_clients"`
	Threshold        int `json:"threshold"`
	WindowSeconds    int `json:"window_seconds"`
}

// New creates a Limiter admitting at most threshold requests per key within
// any rolling window.
func New(threshold int, window time.Duration) *Limiter {
	return &Limiter{
		threshold: threshold,
		window:    window,
		records:   make(map[string][]time.Time),
		now:       time.Now,
	}
}

// Threshold returns the configured per-window request budget.
func (l *Limiter) Threshold() int { return l.threshold }

// Allow checks whether the client identified by key may proceed. Records
// older than the window are pruned first; if the remaining count has reached
// the threshold the request is denied and no record is appended.
func (l *Limiter) Allow(key string) Verdict {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recs := l.prune(key, cutoff)
	if len(recs) >= l.threshold {
		// Retry once the oldest surviving record falls out of the window.
		return Verdict{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: recs[0].Add(l.window).Sub(now),
		}
	}

	l.records[key] = append(recs, now)
	return Verdict{
		Allowed:   true,
		Remaining: l.threshold - len(recs) - 1,
	}
}

// prune drops records at or before cutoff for key and returns the survivors.
// Caller must hold l.mu.
func (l *Limiter) prune(key string, cutoff time.Time) []time.Time {
	recs := l.records[key]
	i := 0
	for i < len(recs) && !recs[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return recs
	}
	recs = recs[i:]
	if len(recs) == 0 {
		delete(l.records, key)
		return nil
	}
	l.records[key] = recs
	return recs
}

// Snapshot derives current limiter statistics without mutating the record
// set. Stale records are skipped while counting rather than removed.
func (l *Limiter) Snapshot() Stats {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		Threshold:     l.threshold,
		WindowSeconds: int(l.window.Seconds()),
	}
	for _, recs := range l.records {
		n := 0
		for _, t := range recs {
			if t.After(cutoff) {
				n++
			}
		}
		if n > 0 {
			s.RequestsInWindow += n
			s.DistinctClients++
		}
	}
	return s
}

// ClientKey extracts the rate limit key from a request: the first entry of
// X-Forwarded-For when present, otherwise the RemoteAddr host.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
