package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"media-normalizer/internal/ffmpeg"
	"media-normalizer/internal/model"
	"media-normalizer/internal/progress"
	"media-normalizer/internal/runstore"
)

// Converter runs one ffmpeg conversion at a time and owns its progress
// monitors for the duration of the run.
type Converter struct {
	Tool   *ffmpeg.Tool
	Encode ffmpeg.EncodeOptions

	PollInterval   time.Duration
	RenderInterval time.Duration
	StaleAfter     time.Duration

	Sink   progress.Sink
	Logger *zap.Logger
	// RawOutput, when set, receives every ffmpeg output line.
	RawOutput io.Writer
}

// Convert takes job from starting to a terminal state. It never returns with
// a monitor goroutine still running.
func (c *Converter) Convert(ctx context.Context, job model.Job) model.Result {
	logger := c.logger().With(zap.String("input", job.InputPath))
	res := model.Result{Job: job}
	mustTransition(&res, model.StateStarting)

	info, err := os.Stat(job.InputPath)
	if err != nil {
		return failed(res, fmt.Errorf("stat input: %w", err))
	}
	res.InputBytes = info.Size()

	if _, err := os.Stat(job.OutputPath); err == nil {
		logger.Info("output exists, skipping", zap.String("output", job.OutputPath))
		mustTransition(&res, model.StateSkipped)
		return res
	} else if !os.IsNotExist(err) {
		return failed(res, fmt.Errorf("stat output: %w", err))
	}
	if err := runstore.Mkdir(filepath.Dir(job.OutputPath)); err != nil {
		return failed(res, err)
	}

	res.DurationSeconds = c.Tool.ProbeDuration(ctx, job.InputPath)
	if res.DurationSeconds == 0 {
		logger.Warn("duration unknown, progress falls back to output size")
	}

	enc := c.Encode
	enc.CRF = job.CRF
	if job.Preset != "" {
		enc.Preset = job.Preset
	}
	args := ffmpeg.BuildArgs(job.InputPath, job.OutputPath, enc)
	logger.Debug("starting ffmpeg", zap.Strings("args", args))

	start := time.Now()
	cmd := c.Tool.Command(ctx, args)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return failed(res, fmt.Errorf("setup stdout pipe: %w", err))
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return failed(res, fmt.Errorf("setup stderr pipe: %w", err))
	}
	if err := cmd.Start(); err != nil {
		return failed(res, fmt.Errorf("start ffmpeg: %w", err))
	}
	mustTransition(&res, model.StateRunning)
	logger.Debug("ffmpeg started", zap.Int("pid", cmd.Process.Pid))

	monCtx, cancelMonitors := context.WithCancel(ctx)
	defer cancelMonitors()

	estimates := make(chan progress.Estimate, 16)
	tail := ffmpeg.NewTail(ffmpeg.DiagnosticLimit)

	agg := &progress.Aggregator{
		Label:      filepath.Base(job.InputPath),
		Interval:   c.RenderInterval,
		StaleAfter: c.StaleAfter,
		Start:      start,
		Sink:       c.Sink,
	}
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		agg.Run(monCtx, estimates)
	}()

	var monitors sync.WaitGroup
	monitors.Add(1)
	go func() {
		defer monitors.Done()
		size := &progress.SizeMonitor{
			InputPath:  job.InputPath,
			OutputPath: job.OutputPath,
			Interval:   c.PollInterval,
			Start:      start,
			Logger:     logger,
		}
		size.Run(monCtx, estimates)
	}()

	var echoMu sync.Mutex
	tap := func(stream ffmpeg.OutputStream) func(string) {
		return func(line string) {
			if stream == ffmpeg.StreamStderr {
				tail.AddLine(line)
			}
			if c.RawOutput != nil {
				echoMu.Lock()
				_, _ = io.WriteString(c.RawOutput, line+"\n")
				echoMu.Unlock()
			}
		}
	}

	var readers sync.WaitGroup
	read := func(stream ffmpeg.OutputStream, r io.Reader) {
		defer readers.Done()
		parser := &progress.StreamParser{Duration: res.DurationSeconds, Start: start, Logger: logger}
		parser.Run(monCtx, r, estimates, tap(stream))
	}
	readers.Add(2)
	go read(ffmpeg.StreamStdout, stdoutPipe)
	go read(ffmpeg.StreamStderr, stderrPipe)
	readers.Wait()

	waitErr := cmd.Wait()
	res.WallTime = time.Since(start)

	cancelMonitors()
	monitors.Wait()
	close(estimates)
	<-aggDone

	if waitErr != nil {
		res.ExitCode = ffmpeg.ExitCode(waitErr)
		res.Diagnostics = tail.String()
		removePartial(logger, job.OutputPath)
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			return failed(res, fmt.Errorf("conversion interrupted: %w", ctx.Err()))
		case errors.As(waitErr, &exitErr):
			return failed(res, fmt.Errorf("ffmpeg exited with code %d", res.ExitCode))
		default:
			return failed(res, fmt.Errorf("wait for ffmpeg: %w", waitErr))
		}
	}

	out, err := os.Stat(job.OutputPath)
	if err != nil {
		return failed(res, fmt.Errorf("ffmpeg exited cleanly but output is missing: %w", err))
	}
	res.OutputBytes = out.Size()
	res.CompressionRatio = CompressionRatio(res.InputBytes, res.OutputBytes)
	mustTransition(&res, model.StateSucceeded)
	logger.Info("conversion finished",
		zap.Int64("input_bytes", res.InputBytes),
		zap.Int64("output_bytes", res.OutputBytes),
		zap.Float64("ratio", res.CompressionRatio),
		zap.Duration("wall", res.WallTime),
	)
	return res
}

// CompressionRatio is input size over output size, 0 for an empty output.
func CompressionRatio(inputBytes, outputBytes int64) float64 {
	if outputBytes <= 0 {
		return 0
	}
	return float64(inputBytes) / float64(outputBytes)
}

func failed(res model.Result, err error) model.Result {
	mustTransition(&res, model.StateFailed)
	res.Error = err.Error()
	return res
}

// mustTransition panics on a transition the converter itself never makes.
func mustTransition(res *model.Result, to model.State) {
	if err := model.TransitionResult(res, to); err != nil {
		panic(err)
	}
}

// removePartial deletes a half-written output; an existing output is
// otherwise skipped as converted on the next run.
func removePartial(logger *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove partial output", zap.String("output", path), zap.Error(err))
	}
}

func (c *Converter) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
