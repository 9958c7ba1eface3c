package game

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// DefaultStatsWindow is the number of frame deltas kept
const DefaultStatsWindow = 256

// FrameSummary describes recent frame timing
type FrameSummary struct {
	Frames  uint64  `json:"frames"`
	Samples int     `json:"samples"`
	MeanDt  float64 `json:"meanDt"`
	StdDt   float64 `json:"stdDt"`
	MaxDt   float64 `json:"maxDt"`
}

// FrameStats keeps a rolling window of frame deltas. Safe for concurrent use.
type FrameStats struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
	frames  uint64
}

// NewFrameStats creates a window of the given size
func NewFrameStats(window int) *FrameStats {
	if window <= 0 {
		window = DefaultStatsWindow
	}
	return &FrameStats{samples: make([]float64, window)}
}

// Add records one frame delta
func (s *FrameStats) Add(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[s.next] = dt
	s.next++
	if s.next == len(s.samples) {
		s.next = 0
		s.full = true
	}
	s.frames++
}

// Summary computes mean, standard deviation and max over the window
func (s *FrameStats) Summary() FrameSummary {
	s.mu.Lock()
	window := s.samples[:s.next]
	if s.full {
		window = s.samples
	}
	data := append([]float64(nil), window...)
	frames := s.frames
	s.mu.Unlock()

	sum := FrameSummary{Frames: frames, Samples: len(data)}
	if len(data) == 0 {
		return sum
	}

	if len(data) < 2 {
		sum.MeanDt = data[0]
	} else {
		sum.MeanDt, sum.StdDt = stat.MeanStdDev(data, nil)
	}
	for _, dt := range data {
		if dt > sum.MaxDt {
			sum.MaxDt = dt
		}
	}
	return sum
}
