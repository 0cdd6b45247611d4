package metrics

// Bus statistics per telegram id

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Outcome classifies what happened to one frame.
type Outcome string

const (
	OutcomeDecoded   Outcome = "decoded"
	OutcomeUnknown   Outcome = "unknown_id"
	OutcomeChecksum  Outcome = "checksum_mismatch"
	OutcomeMismatch  Outcome = "size_or_identity_mismatch"
	OutcomeMalformed Outcome = "malformed"
	OutcomeOverflow  Outcome = "buffer_overflow"
)

// Event is a single frame observation.
type Event struct {
	Timestamp time.Time
	ID        uint16
	Kind      string
	Outcome   Outcome
	Size      int
	Error     string
}

// IDStats aggregates the frames seen for one id.
type IDStats struct {
	ID        uint16
	Kind      string
	Count     int
	Errors    int
	FirstSeen time.Time
	LastSeen  time.Time
	MinGapMs  float64
	MaxGapMs  float64
	AvgGapMs  float64
	P50GapMs  float64
	P90GapMs  float64

	gaps []float64
}

// Summary contains aggregated statistics
type Summary struct {
	TotalFrames    int
	Decoded        int
	Unknown        int
	ChecksumErrors int
	Mismatches     int
	Malformed      int
	Overflows      int
	FirstSeen      time.Time
	LastSeen       time.Time
	ByID           map[uint16]*IDStats
}

// Duration is the time between the first and the last timestamped frame.
func (s *Summary) Duration() time.Duration {
	if s.FirstSeen.IsZero() || s.LastSeen.IsZero() {
		return 0
	}
	return s.LastSeen.Sub(s.FirstSeen)
}

// SortedIDs returns the ids in ascending order.
func (s *Summary) SortedIDs() []uint16 {
	ids := make([]uint16, 0, len(s.ByID))
	for id := range s.ByID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sink collects events and keeps a running summary. It is safe for
// concurrent use.
type Sink struct {
	mu      sync.RWMutex
	summary *Summary
}

// NewSink creates an empty sink
func NewSink() *Sink {
	return &Sink{summary: newSummary()}
}

func newSummary() *Summary {
	return &Summary{ByID: make(map[uint16]*IDStats)}
}

// Record adds one event. A nil sink ignores it.
func (s *Sink) Record(e Event) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := s.summary
	switch e.Outcome {
	case OutcomeOverflow:
		sum.Overflows++
		return
	case OutcomeMalformed:
		sum.Malformed++
		return
	}

	sum.TotalFrames++
	switch e.Outcome {
	case OutcomeDecoded:
		sum.Decoded++
	case OutcomeUnknown:
		sum.Unknown++
	case OutcomeChecksum:
		sum.ChecksumErrors++
	case OutcomeMismatch:
		sum.Mismatches++
	}

	if !e.Timestamp.IsZero() {
		if sum.FirstSeen.IsZero() || e.Timestamp.Before(sum.FirstSeen) {
			sum.FirstSeen = e.Timestamp
		}
		if e.Timestamp.After(sum.LastSeen) {
			sum.LastSeen = e.Timestamp
		}
	}

	st, ok := sum.ByID[e.ID]
	if !ok {
		st = &IDStats{ID: e.ID, FirstSeen: e.Timestamp}
		sum.ByID[e.ID] = st
	}
	st.Count++
	if e.Kind != "" && e.Outcome == OutcomeDecoded {
		st.Kind = e.Kind
	} else if st.Kind == "" {
		st.Kind = e.Kind
	}
	if e.Outcome == OutcomeChecksum || e.Outcome == OutcomeMismatch {
		st.Errors++
	}
	if !st.LastSeen.IsZero() && !e.Timestamp.IsZero() {
		gap := float64(e.Timestamp.Sub(st.LastSeen).Microseconds()) / 1000
		st.gaps = append(st.gaps, gap)
	}
	if !e.Timestamp.IsZero() {
		st.LastSeen = e.Timestamp
	}
}

// GetSummary returns a snapshot with gap statistics filled in.
func (s *Sink) GetSummary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := *s.summary
	out.ByID = make(map[uint16]*IDStats, len(s.summary.ByID))
	for id, st := range s.summary.ByID {
		c := *st
		c.gaps = nil
		if len(st.gaps) > 0 {
			sorted := append([]float64(nil), st.gaps...)
			sort.Float64s(sorted)
			c.MinGapMs = sorted[0]
			c.MaxGapMs = sorted[len(sorted)-1]
			var total float64
			for _, g := range sorted {
				total += g
			}
			c.AvgGapMs = total / float64(len(sorted))
			c.P50GapMs = percentile(sorted, 50)
			c.P90GapMs = percentile(sorted, 90)
		}
		out.ByID[id] = &c
	}
	return &out
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
