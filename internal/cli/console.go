package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"media-normalizer/internal/discovery"
	"media-normalizer/internal/model"
	"media-normalizer/internal/progress"
)

var (
	consoleTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	consoleMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	consoleErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	consoleOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

// consolePrinter writes the per-file header and result lines. While a TUI is
// running, lines go through it so they land above the progress view.
type consolePrinter struct {
	w          io.Writer
	color      bool
	tui        *progress.TUISink
	inputDir   string
	extensions []string
	sizes      map[string]int64
}

func newConsolePrinter(w io.Writer, color bool, inputDir string, extensions []string) *consolePrinter {
	return &consolePrinter{
		w:          w,
		color:      color,
		inputDir:   inputDir,
		extensions: extensions,
		sizes:      map[string]int64{},
	}
}

func (c *consolePrinter) BatchDiscovered(files []discovery.SourceFile) {
	if len(files) == 0 {
		c.println("no source videos found in %s", c.inputDir)
		c.println("supported extensions: %s", strings.Join(c.extensions, " "))
		return
	}
	for _, f := range files {
		c.sizes[f.Path] = f.Size
	}
	c.println("found %d file(s), total %s", len(files), progress.FormatBytesIEC(discovery.TotalSize(files)))
	c.println("")
}

func (c *consolePrinter) paint(style lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return style.Render(s)
}

func (c *consolePrinter) println(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if c.tui != nil {
		c.tui.Println(line)
		return
	}
	fmt.Fprintln(c.w, line)
}

func (c *consolePrinter) display(path string) string {
	if rel, err := filepath.Rel(c.inputDir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func (c *consolePrinter) JobStarted(index, total int, job model.Job) {
	c.println("%s %s (%s)",
		c.paint(consoleTitleStyle, fmt.Sprintf("[%d/%d]", index, total)),
		c.display(job.InputPath),
		progress.FormatBytesIEC(c.sizes[job.InputPath]),
	)
	c.println("  %s", c.paint(consoleMutedStyle, fmt.Sprintf("crf %d, preset %s -> %s", job.CRF, job.Preset, job.OutputPath)))
}

func (c *consolePrinter) JobFinished(index, total int, res model.Result) {
	switch res.State {
	case model.StateSucceeded:
		c.println("  %s %s -> %s, ratio %.1fx, took %s",
			c.paint(consoleOKStyle, "done"),
			progress.FormatBytesIEC(res.InputBytes),
			progress.FormatBytesIEC(res.OutputBytes),
			res.CompressionRatio,
			progress.FormatClock(res.WallTime),
		)
	case model.StateSkipped:
		c.println("  %s", c.paint(consoleMutedStyle, "skipped: output exists"))
	default:
		c.println("  %s %s", c.paint(consoleErrorStyle, "failed"), res.Error)
		if res.Diagnostics != "" {
			for _, line := range strings.Split(res.Diagnostics, "\n") {
				c.println("    %s", c.paint(consoleMutedStyle, line))
			}
		}
	}
}

func (c *consolePrinter) summary(report model.BatchReport) {
	if report.Total == 0 {
		return
	}
	c.println("")
	c.println("%s %d file(s): %s, %s, %s",
		c.paint(consoleTitleStyle, "summary:"),
		report.Total,
		c.paint(consoleOKStyle, fmt.Sprintf("%d succeeded", report.Succeeded)),
		c.paint(consoleMutedStyle, fmt.Sprintf("%d skipped", report.Skipped)),
		c.paintCount(report.Failed, "failed"),
	)
	if report.Succeeded > 0 {
		c.println("  converted %s -> %s",
			progress.FormatBytesIEC(report.InputBytes),
			progress.FormatBytesIEC(report.OutputBytes),
		)
	}
	if report.Interrupted {
		c.println("  %s", c.paint(consoleErrorStyle, "interrupted: rerun to continue, finished outputs are skipped"))
	}
}

func (c *consolePrinter) paintCount(n int, label string) string {
	text := fmt.Sprintf("%d %s", n, label)
	if n == 0 {
		return c.paint(consoleMutedStyle, text)
	}
	return c.paint(consoleErrorStyle, text)
}
