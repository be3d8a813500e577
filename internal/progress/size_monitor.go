package progress

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 2 * time.Second

// SizeMonitor estimates progress from the size of the growing output file
// relative to the input file. Re-encodes rarely end at the input size, so the
// estimate is an approximation; it is only ever clamped, never corrected.
type SizeMonitor struct {
	InputPath  string
	OutputPath string
	Interval   time.Duration
	Start      time.Time
	Logger     *zap.Logger
}

// Run polls until ctx is done, sending at most one estimate per tick. A stat
// failure ends the monitor without affecting the conversion.
func (m *SizeMonitor) Run(ctx context.Context, out chan<- Estimate) {
	logger := m.logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("size monitor panicked", zap.Any("panic", r))
		}
	}()

	interval := m.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	start := m.Start
	if start.IsZero() {
		start = time.Now()
	}

	info, err := os.Stat(m.InputPath)
	if err != nil {
		logger.Warn("size monitor stopped", zap.Error(fmt.Errorf("stat input: %w", err)))
		return
	}
	inputSize := info.Size()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev int64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			info, err := os.Stat(m.OutputPath)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				logger.Warn("size monitor stopped", zap.Error(fmt.Errorf("stat output: %w", err)))
				return
			}
			est, ok := sizeEstimate(inputSize, info.Size(), prev, interval, now.Sub(start))
			if info.Size() > prev {
				prev = info.Size()
			}
			if !ok {
				continue
			}
			est.At = now
			select {
			case out <- est:
			case <-ctx.Done():
				return
			}
		}
	}
}

// sizeEstimate derives one reading from the input size, the current output
// size and the output size at the last observed growth.
func sizeEstimate(inputSize, current, previous int64, interval, elapsed time.Duration) (Estimate, bool) {
	if inputSize <= 0 || current <= 0 {
		return Estimate{}, false
	}

	pct := clampPercent(100 * float64(current) / float64(inputSize))

	var throughput float64
	if current > previous && interval > 0 {
		throughput = float64(current-previous) / interval.Seconds()
	}

	est := Estimate{
		Source:       SourceSize,
		Percent:      pct,
		PercentKnown: true,
		Elapsed:      elapsed,
		Throughput:   throughput,
		OutputBytes:  current,
	}
	if pct > 1 && throughput > 0 {
		left := float64(inputSize - current)
		if left < 0 {
			left = 0
		}
		est.Remaining = secondsToDuration(left / throughput)
		est.RemainingKnown = true
	}
	return est, true
}

func (m *SizeMonitor) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger.With(zap.String("monitor", string(SourceSize)))
}
