package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultFFmpeg  = "ffmpeg"
	DefaultFFprobe = "ffprobe"

	// interruptGrace is how long ffmpeg gets to finalize after an interrupt
	// before it is killed.
	interruptGrace = 5 * time.Second
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// Tool locates the ffmpeg and ffprobe binaries used for one run.
type Tool struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *zap.Logger
}

func NewTool(ffmpegPath, ffprobePath string, logger *zap.Logger) *Tool {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = DefaultFFmpeg
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = DefaultFFprobe
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Logger: logger}
}

type EncodeOptions struct {
	VideoCodec   string
	CRF          int
	Preset       string
	AudioCodec   string
	AudioBitrate string
}

func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		VideoCodec:   "libx264",
		CRF:          20,
		Preset:       "medium",
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	}
}

// BuildArgs returns the ffmpeg argument list for one normalize encode. The
// machine-readable progress channel goes to stdout while the human stats line
// stays on stderr, so both are available to progress parsing.
func BuildArgs(inputPath, outputPath string, opts EncodeOptions) []string {
	def := DefaultEncodeOptions()
	if strings.TrimSpace(opts.VideoCodec) == "" {
		opts.VideoCodec = def.VideoCodec
	}
	if strings.TrimSpace(opts.Preset) == "" {
		opts.Preset = def.Preset
	}
	if strings.TrimSpace(opts.AudioCodec) == "" {
		opts.AudioCodec = def.AudioCodec
	}
	if strings.TrimSpace(opts.AudioBitrate) == "" {
		opts.AudioBitrate = def.AudioBitrate
	}

	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", inputPath,
		"-c:v", opts.VideoCodec,
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", opts.Preset,
		"-c:a", opts.AudioCodec,
		"-b:a", opts.AudioBitrate,
		"-movflags", "+faststart",
		"-y",
		"-progress", "pipe:1",
		"-loglevel", "info",
		outputPath,
	}
}

// Command prepares an ffmpeg invocation bound to ctx. Cancelling ctx sends an
// interrupt so ffmpeg can close the container; it is killed if it has not
// exited after a grace period.
func (t *Tool) Command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = interruptGrace
	return cmd
}

type DependencyReport struct {
	FFmpegFound  bool   `json:"ffmpeg_found"`
	FFmpegPath   string `json:"ffmpeg_path,omitempty"`
	FFprobeFound bool   `json:"ffprobe_found"`
	FFprobePath  string `json:"ffprobe_path,omitempty"`
}

func (t *Tool) DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(t.FFmpegPath); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	if path, err := exec.LookPath(t.FFprobePath); err == nil {
		report.FFprobeFound = true
		report.FFprobePath = path
	}
	return report
}

func (t *Tool) CheckDependencies() error {
	report := t.DependencyStatus()
	if !report.FFmpegFound {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", t.FFmpegPath)
	}
	if !report.FFprobeFound {
		return fmt.Errorf("missing dependency: %s is required for duration probing and was not found on PATH", t.FFprobePath)
	}
	return nil
}

// ExitCode extracts the process exit status from a Wait error, or -1 when the
// process did not exit normally.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
