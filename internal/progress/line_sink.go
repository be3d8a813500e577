package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	linePctStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	lineMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// LineSink overwrites a single terminal line with each sample.
type LineSink struct {
	W     io.Writer
	Color bool

	mu    sync.Mutex
	dirty bool
}

func NewLineSink(w io.Writer, color bool) *LineSink {
	return &LineSink{W: w, Color: color}
}

func (l *LineSink) Update(s Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.W, "\r\033[2K%s", RenderLine(s, l.Color))
	l.dirty = true
}

// Finish clears the progress line so following output starts on a clean line.
func (l *LineSink) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dirty {
		fmt.Fprint(l.W, "\r\033[2K")
		l.dirty = false
	}
}

// RenderLine formats a sample as one line of text.
func RenderLine(s Sample, color bool) string {
	style := func(st lipgloss.Style, v string) string {
		if !color {
			return v
		}
		return st.Render(v)
	}

	parts := make([]string, 0, 8)
	if s.Label != "" {
		parts = append(parts, s.Label)
	}
	if s.PercentKnown {
		parts = append(parts, style(linePctStyle, fmt.Sprintf("%.2f%%", s.Percent)))
	} else if s.MediaTime > 0 {
		parts = append(parts, "at "+FormatClock(secondsToDuration(s.MediaTime)))
	}
	parts = append(parts, style(lineMutedStyle, "elapsed")+" "+FormatClock(s.Elapsed))
	if s.RemainingKnown {
		if eta := FormatETA(s.Remaining); eta != "" {
			parts = append(parts, style(lineMutedStyle, "ETA")+" "+eta)
		}
	}
	if rate := FormatRate(s.Throughput); rate != "" {
		parts = append(parts, rate)
	}
	if s.OutputBytes > 0 {
		parts = append(parts, FormatBytesIEC(s.OutputBytes))
	}
	if s.Speed != "" {
		parts = append(parts, s.Speed)
	}
	parts = append(parts, style(lineMutedStyle, "("+string(s.Source)+")"))
	return strings.Join(parts, "  ")
}
