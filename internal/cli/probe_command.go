package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"media-normalizer/internal/config"
	"media-normalizer/internal/ffmpeg"
	"media-normalizer/internal/logging"
	"media-normalizer/internal/progress"
)

type probeResult struct {
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"duration_seconds"`
	Known           bool    `json:"known"`
}

func runProbe(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	ffprobePath := fs.String("ffprobe", cfg.FFprobePath, "ffprobe binary")
	verbose := fs.Bool("verbose", cfg.Verbose, "log probe failures")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("at least one file is required")
	}

	logger, closeLog, err := logging.New(logging.Options{Console: os.Stderr, Level: cfg.LogLevel, Verbose: *verbose})
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()

	tool := ffmpeg.NewTool(cfg.FFmpegPath, *ffprobePath, logger)
	results := make([]probeResult, 0, fs.NArg())
	for _, path := range fs.Args() {
		d := tool.ProbeDuration(context.Background(), path)
		results = append(results, probeResult{Path: path, DurationSeconds: d, Known: d > 0})
	}

	if *jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		if !r.Known {
			fmt.Printf("%s: unknown\n", r.Path)
			continue
		}
		fmt.Printf("%s: %.2fs (%s)\n", r.Path, r.DurationSeconds, progress.FormatClock(time.Duration(r.DurationSeconds*float64(time.Second))))
	}
	return nil
}
