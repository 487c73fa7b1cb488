package domain

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewSheetID returns a fresh sheet identifier.
func NewSheetID() string {
	return uuid.New().String()
}

// IDSource hands out block, zone and image ids. Each id is a base36
// millisecond timestamp plus a random suffix; the timestamp part never goes
// backwards, so ids minted by one source sort by creation order.
type IDSource struct {
	Now func() time.Time

	mu   sync.Mutex
	last int64
}

var defaultIDs = &IDSource{}

// DefaultIDs is the process-wide source used when callers don't supply one.
func DefaultIDs() *IDSource { return defaultIDs }

func (s *IDSource) Next() string {
	if s == nil {
		s = defaultIDs
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	s.mu.Lock()
	ms := now().UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	s.mu.Unlock()

	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	return strconv.FormatInt(ms, 36) + "-" + suffix
}
