// Package ids generates identifiers for new entities.
package ids

import (
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator produces opaque entity identifiers.
type Generator interface {
	Next() string
}

// TimeRandom builds ids from a millisecond timestamp and random entropy,
// e.g. "IDloyw3v28k3abc4dq". Ids sort roughly by creation time and are easy to
// tell apart on screen.
type TimeRandom struct {
	Prefix string
	Now    func() time.Time
}

// NewTimeRandom returns a TimeRandom generator using prefix (default "ID").
func NewTimeRandom(prefix string) *TimeRandom {
	if prefix == "" {
		prefix = "ID"
	}
	return &TimeRandom{Prefix: prefix, Now: time.Now}
}

// Next returns a new id.
func (g *TimeRandom) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	stamp := strconv.FormatInt(now().UnixMilli(), 36)
	return g.Prefix + stamp + entropy(entropyLen)
}

const entropyLen = 8

// entropy returns n base36 characters drawn from a random UUID.
func entropy(n int) string {
	id := uuid.New()
	v := binary.BigEndian.Uint64(id[8:])
	s := strconv.FormatUint(v, 36)
	if len(s) < n {
		s = strings.Repeat("0", n-len(s)) + s
	}
	return s[len(s)-n:]
}

// Sequence hands out prefix-1, prefix-2, ... and is meant for tests and
// reproducible fixtures.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequence returns a Sequence generator.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next id in the sequence.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.prefix + "-" + strconv.Itoa(s.n)
}
