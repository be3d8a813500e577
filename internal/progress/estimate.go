package progress

import "time"

// Source identifies which monitor produced an estimate.
type Source string

const (
	SourceSize   Source = "size"
	SourceStream Source = "stream"
)

// Estimate is one candidate progress reading from a single monitor.
type Estimate struct {
	Source         Source
	Percent        float64
	PercentKnown   bool
	Elapsed        time.Duration
	Remaining      time.Duration
	RemainingKnown bool
	// Throughput is output growth in bytes per second (size monitor only).
	Throughput  float64
	OutputBytes int64
	// MediaTime is the encode position in seconds (stream parser only).
	MediaTime float64
	Speed     string
	At        time.Time
}

// Sample is what gets displayed for one render interval.
type Sample struct {
	Label          string        `json:"label,omitempty"`
	Source         Source        `json:"source"`
	Percent        float64       `json:"percent"`
	PercentKnown   bool          `json:"percent_known"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	Remaining      time.Duration `json:"remaining_ns,omitempty"`
	RemainingKnown bool          `json:"remaining_known"`
	Throughput     float64       `json:"throughput_bytes_per_sec,omitempty"`
	OutputBytes    int64         `json:"output_bytes,omitempty"`
	MediaTime      float64       `json:"media_time_seconds,omitempty"`
	Speed          string        `json:"speed,omitempty"`
	At             time.Time     `json:"at"`
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
