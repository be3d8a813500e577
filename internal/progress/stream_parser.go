package progress

import (
	"context"
	"io"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"media-normalizer/internal/ffmpeg"
)

var (
	// time= on the stderr stats line, out_time= on the -progress channel.
	// out_time_ms/out_time_us are deliberately not matched.
	reTime  = regexp.MustCompile(`(?:^|\s)(?:out_)?time=\s*([^\s]+)`)
	reSpeed = regexp.MustCompile(`(?:^|\s)speed=\s*([^\s]+)`)
)

// StreamParser turns ffmpeg output lines into encode-position estimates.
// With Duration 0 the estimates carry only the media time.
type StreamParser struct {
	Duration float64
	Start    time.Time
	Logger   *zap.Logger
}

// Run reads r until EOF. Every line is handed to tap first. After ctx is done
// the remaining lines are still read and tapped so the writer never blocks,
// but no more estimates are sent. If scanning stops early (an overlong line,
// a read error, a panic) the rest of r is discarded, still up to EOF.
func (p *StreamParser) Run(ctx context.Context, r io.Reader, out chan<- Estimate, tap func(string)) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("monitor", string(SourceStream)))
	defer drain(logger, r)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("stream parser panicked", zap.Any("panic", rec))
		}
	}()

	start := p.Start
	if start.IsZero() {
		start = time.Now()
	}

	scanner := ffmpeg.NewLineScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if tap != nil {
			tap(line)
		}
		if ctx.Err() != nil {
			continue
		}
		now := time.Now()
		est, ok := p.parseLine(line, now.Sub(start))
		if !ok {
			continue
		}
		est.At = now
		select {
		case out <- est:
		case <-ctx.Done():
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stream parser stopped, discarding remaining output", zap.Error(err))
	}
}

// drain consumes r to EOF so the process writing to it never blocks.
func drain(logger *zap.Logger, r io.Reader) {
	n, err := io.Copy(io.Discard, r)
	if n > 0 {
		logger.Debug("discarded unparsed output", zap.Int64("bytes", n))
	}
	if err != nil {
		logger.Warn("draining output failed", zap.Error(err))
	}
}

func (p *StreamParser) parseLine(line string, wall time.Duration) (Estimate, bool) {
	m := reTime.FindStringSubmatch(strings.TrimSpace(line))
	if len(m) < 2 {
		return Estimate{}, false
	}
	media := ffmpeg.ParseClock(m[1])

	est := Estimate{
		Source:    SourceStream,
		Elapsed:   wall,
		MediaTime: media,
	}
	if s := reSpeed.FindStringSubmatch(line); len(s) > 1 && s[1] != "N/A" {
		est.Speed = s[1]
	}
	if p.Duration <= 0 {
		return est, true
	}

	pct := clampPercent(100 * media / p.Duration)
	est.Percent = pct
	est.PercentKnown = true
	if pct > 0 && wall > 0 {
		total := wall.Seconds() / (pct / 100)
		est.Remaining = secondsToDuration(total - wall.Seconds())
		est.RemainingKnown = true
	}
	return est, true
}
