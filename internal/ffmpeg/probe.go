package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type probeStrategy struct {
	name string
	args func(path string) []string
}

// Strategy A reads the container duration scoped to the first video stream,
// strategy B asks for the bare format duration in CSV form. Some containers
// (MXF in particular) only answer one of the two.
var probeStrategies = []probeStrategy{
	{
		name: "video-stream",
		args: func(path string) []string {
			return []string{
				"-v", "error",
				"-select_streams", "v:0",
				"-show_entries", "format=duration",
				"-of", "default=noprint_wrappers=1:nokey=1",
				path,
			}
		},
	},
	{
		name: "format-csv",
		args: func(path string) []string {
			return []string{
				"-v", "error",
				"-show_entries", "format=duration",
				"-of", "csv=p=0",
				path,
			}
		},
	},
}

// ProbeDuration returns the media duration of path in seconds, or 0 when no
// strategy produced a usable value. It never fails the caller.
func (t *Tool) ProbeDuration(ctx context.Context, path string) float64 {
	logger := t.Logger.With(zap.String("input", path))
	for _, strategy := range probeStrategies {
		seconds, err := t.runProbe(ctx, strategy.args(path))
		if err == nil {
			logger.Debug("probed duration", zap.String("strategy", strategy.name), zap.Float64("seconds", seconds))
			return seconds
		}
		logger.Warn("duration probe failed", zap.String("strategy", strategy.name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return 0
}

func (t *Tool) runProbe(ctx context.Context, args []string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.FFprobePath, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseDurationOutput(stdout.String())
}

// ParseDurationOutput parses the first non-empty line of ffprobe output as a
// finite, non-negative number of seconds.
func ParseDurationOutput(raw string) (float64, error) {
	line := ""
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return 0, fmt.Errorf("ffprobe returned empty output")
	}
	// csv output may carry a trailing separator
	line = strings.TrimSuffix(line, ",")
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", line, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("invalid duration %q", line)
	}
	return v, nil
}
