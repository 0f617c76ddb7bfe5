package domain

import (
	"sync"
	"time"
)

// TimestampLayout is fixed width so lexicographic order matches time order.
const TimestampLayout = "20060102-150405.000000"

// Timestamp keys an artifact on disk and in the bucket.
type Timestamp string

func (t Timestamp) String() string {
	return string(t)
}

// Timestamper hands out strictly increasing timestamps, even if the clock
// stalls or steps backwards between two saves.
type Timestamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewTimestamper(now func() time.Time) *Timestamper {
	if now == nil {
		now = time.Now
	}
	return &Timestamper{now: now}
}

func (t *Timestamper) Next() Timestamp {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.now().UTC().Truncate(time.Microsecond)
	if !ts.After(t.last) {
		ts = t.last.Add(time.Microsecond)
	}
	t.last = ts
	return Timestamp(ts.Format(TimestampLayout))
}
