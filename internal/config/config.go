package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"media-normalizer/internal/ffmpeg"
	"media-normalizer/internal/progress"
)

// EnvPrefix is prepended to every environment override, e.g. MEDIANORM_CRF.
const EnvPrefix = "MEDIANORM"

const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

var x264Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

// Config holds every tunable of a run. Precedence is defaults, then
// environment, then command-line flags. Environment names are the field names
// in upper snake case behind EnvPrefix, e.g. MEDIANORM_POLL_INTERVAL.
type Config struct {
	InputDir  string `split_words:"true"`
	OutputDir string `split_words:"true"`

	FFmpegPath  string `split_words:"true"`
	FFprobePath string `split_words:"true"`

	VideoCodec   string   `split_words:"true"`
	Preset       string   `split_words:"true"`
	AudioCodec   string   `split_words:"true"`
	AudioBitrate string   `split_words:"true"`
	Extensions   []string `split_words:"true"`
	CRF          int

	PollInterval   time.Duration `split_words:"true"`
	RenderInterval time.Duration `split_words:"true"`
	StaleAfter     time.Duration `split_words:"true"`

	LogFile   string `split_words:"true"`
	LogLevel  string `split_words:"true"`
	Verbose   bool   `split_words:"true"`
	ColorMode string `split_words:"true"`
	TUI       bool   `split_words:"true"`
	RawOutput bool   `split_words:"true"`

	StatusAddr      string `split_words:"true"`
	MetricsTextfile string `split_words:"true"`
	ReportPath      string `split_words:"true"`
}

func DefaultConfig() Config {
	enc := ffmpeg.DefaultEncodeOptions()
	return Config{
		InputDir:       "input",
		OutputDir:      "output",
		FFmpegPath:     ffmpeg.DefaultFFmpeg,
		FFprobePath:    ffmpeg.DefaultFFprobe,
		VideoCodec:     enc.VideoCodec,
		CRF:            enc.CRF,
		Preset:         enc.Preset,
		AudioCodec:     enc.AudioCodec,
		AudioBitrate:   enc.AudioBitrate,
		Extensions:     []string{".mxf", ".mov", ".mp4", ".avi", ".mkv", ".mts", ".m2ts"},
		PollInterval:   progress.DefaultPollInterval,
		RenderInterval: progress.DefaultRenderInterval,
		StaleAfter:     progress.DefaultStaleAfter,
		LogLevel:       "warn",
		ColorMode:      ColorAuto,
	}
}

// Load returns the defaults with MEDIANORM_* environment overrides applied.
func Load() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read %s_* environment: %w", EnvPrefix, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return fmt.Errorf("input directory is required")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.CRF < 0 || c.CRF > 51 {
		return fmt.Errorf("invalid crf %d (expected 0-51)", c.CRF)
	}
	c.Preset = strings.ToLower(strings.TrimSpace(c.Preset))
	if !isPreset(c.Preset) {
		return fmt.Errorf("invalid preset %q (expected one of %s)", c.Preset, strings.Join(x264Presets, ", "))
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.RenderInterval <= 0 {
		return fmt.Errorf("render interval must be positive, got %s", c.RenderInterval)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale-after must be positive, got %s", c.StaleAfter)
	}
	mode, ok := normalizeColorMode(c.ColorMode)
	if !ok {
		return fmt.Errorf("invalid color mode %q (expected auto, always, or never)", c.ColorMode)
	}
	c.ColorMode = mode
	c.Extensions = normalizeExtensions(c.Extensions)
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one input extension is required")
	}
	return nil
}

func (c Config) EncodeOptions() ffmpeg.EncodeOptions {
	return ffmpeg.EncodeOptions{
		VideoCodec:   c.VideoCodec,
		CRF:          c.CRF,
		Preset:       c.Preset,
		AudioCodec:   c.AudioCodec,
		AudioBitrate: c.AudioBitrate,
	}
}

// UseColor resolves ColorMode against whether the output is a terminal.
func (c Config) UseColor(isTTY bool) bool {
	switch c.ColorMode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTTY
	}
}

func isPreset(p string) bool {
	for _, v := range x264Presets {
		if v == p {
			return true
		}
	}
	return false
}

func normalizeColorMode(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ColorAuto:
		return ColorAuto, true
	case ColorAlways, "on", "true":
		return ColorAlways, true
	case ColorNever, "off", "false":
		return ColorNever, true
	default:
		return "", false
	}
}

func normalizeExtensions(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, e := range raw {
		v := strings.ToLower(strings.TrimSpace(e))
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
