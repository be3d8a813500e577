package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-normalizer/internal/config"
	"media-normalizer/internal/convert"
	"media-normalizer/internal/discovery"
	"media-normalizer/internal/ffmpeg"
	"media-normalizer/internal/logging"
	"media-normalizer/internal/metrics"
	"media-normalizer/internal/model"
	"media-normalizer/internal/progress"
	"media-normalizer/internal/runstore"
	"media-normalizer/internal/statusserver"
)

const statusShutdownTimeout = 2 * time.Second

func runConvert(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.StringVar(&cfg.InputDir, "input", cfg.InputDir, "directory scanned recursively for source videos (created if missing)")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "directory receiving the converted .mp4 files")
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "ffmpeg binary")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "ffprobe binary")
	fs.StringVar(&cfg.VideoCodec, "video-codec", cfg.VideoCodec, "ffmpeg video encoder")
	fs.IntVar(&cfg.CRF, "crf", cfg.CRF, "constant rate factor 0-51 (lower = better quality)")
	fs.StringVar(&cfg.Preset, "preset", cfg.Preset, "encoder preset: ultrafast..veryslow")
	fs.StringVar(&cfg.AudioCodec, "audio-codec", cfg.AudioCodec, "ffmpeg audio encoder")
	fs.StringVar(&cfg.AudioBitrate, "audio-bitrate", cfg.AudioBitrate, "audio bitrate, e.g. 192k")
	extensions := fs.String("extensions", strings.Join(cfg.Extensions, ","), "comma-separated input extensions")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "output size sampling interval")
	fs.DurationVar(&cfg.RenderInterval, "render-interval", cfg.RenderInterval, "progress line refresh interval")
	fs.DurationVar(&cfg.StaleAfter, "stale-after", cfg.StaleAfter, "age after which ffmpeg-reported progress yields to the size estimate")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write JSON debug logs to this file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "console log level: debug|info|warn|error")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "debug logging on the console")
	fs.StringVar(&cfg.ColorMode, "color", cfg.ColorMode, "color output: auto|always|never")
	fs.BoolVar(&cfg.TUI, "tui", cfg.TUI, "show a full-width progress bar instead of a single line")
	fs.BoolVar(&cfg.RawOutput, "raw-output", cfg.RawOutput, "print raw ffmpeg output lines (verbose)")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "serve /status, /healthz and /metrics on this address")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "write Prometheus metrics to this file after the batch")
	fs.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "write the batch report as JSON to this file")
	jsonOut := fs.Bool("json", false, "print the batch report as JSON")

	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Extensions = splitList(*extensions)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Console: os.Stderr,
		Level:   cfg.LogLevel,
		Verbose: cfg.Verbose,
		File:    cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return convertBatch(ctx, cfg, *jsonOut, logger)
}

func convertBatch(ctx context.Context, cfg config.Config, jsonOut bool, logger *zap.Logger) error {
	var out io.Writer = os.Stdout
	if jsonOut {
		out = io.Discard
	}

	inputDir, outputDir, createdInput, err := discovery.ResolveDirs(cfg.InputDir, cfg.OutputDir)
	if err != nil {
		return err
	}
	if createdInput {
		fmt.Fprintf(out, "created input directory %s\n", inputDir)
		fmt.Fprintln(out, "place your source videos there and run convert again")
		if jsonOut {
			return printJSON(model.BatchReport{InputDir: inputDir, OutputDir: outputDir, Results: []model.Result{}})
		}
		return nil
	}

	tool := ffmpeg.NewTool(cfg.FFmpegPath, cfg.FFprobePath, logger)
	if err := tool.CheckDependencies(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	color := cfg.UseColor(isTerminal(os.Stdout))
	console := newConsolePrinter(out, color, inputDir, cfg.Extensions)

	m := metrics.New()
	sinks := progress.MultiSink{m}
	observers := convert.Observers{console, m}

	if !jsonOut {
		if cfg.TUI {
			tui := progress.NewTUISink(os.Stdout)
			defer func() {
				_ = tui.Close()
			}()
			console.tui = tui
			sinks = append(sinks, tui)
		} else {
			sinks = append(sinks, progress.NewLineSink(os.Stdout, color))
		}
	}

	if cfg.StatusAddr != "" {
		board := statusserver.NewBoard(runID)
		sinks = append(sinks, board)
		observers = append(observers, board)
		srv, err := statusserver.Start(cfg.StatusAddr, statusserver.NewRouter(board, m.Registry), logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown failed", zap.Error(err))
			}
		}()
		fmt.Fprintf(out, "status: http://%s/status\n\n", srv.Addr())
	}

	var raw io.Writer
	if cfg.RawOutput && !jsonOut {
		raw = os.Stderr
	}
	batch := &convert.Batch{
		Converter: &convert.Converter{
			Tool:           tool,
			Encode:         cfg.EncodeOptions(),
			PollInterval:   cfg.PollInterval,
			RenderInterval: cfg.RenderInterval,
			StaleAfter:     cfg.StaleAfter,
			Sink:           sinks,
			Logger:         logger,
			RawOutput:      raw,
		},
		Observer: observers,
		Logger:   logger,
	}

	report, err := batch.Run(ctx, convert.BatchOptions{
		RunID:      runID,
		InputDir:   inputDir,
		OutputDir:  outputDir,
		Extensions: cfg.Extensions,
		CRF:        cfg.CRF,
		Preset:     cfg.Preset,
	})
	if err != nil {
		return err
	}
	console.summary(report)

	if cfg.ReportPath != "" {
		if err := runstore.SaveReport(cfg.ReportPath, report); err != nil {
			return err
		}
	}
	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		return err
	}
	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", report.Failed, report.Total)
	}
	if report.Interrupted {
		return errors.New("batch interrupted")
	}
	return nil
}
