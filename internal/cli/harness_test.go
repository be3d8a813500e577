package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-normalizer/internal/model"
	"media-normalizer/internal/runstore"
	"media-normalizer/internal/testutil"
)

const harnessFFmpeg = `out="${@: -1}"
if [ -n "${FAKE_FFMPEG_FAIL:-}" ]; then
  echo "Conversion failed!" >&2
  exit 1
fi
printf 'out_time=00:00:05.000000\nprogress=continue\n'
head -c 250 /dev/zero > "$out"
printf 'out_time=00:00:10.000000\nprogress=end\n'`

func setupFakeFFmpeg(t *testing.T) {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "bin")
	testutil.WriteScript(t, bin, "ffmpeg", harnessFFmpeg)
	testutil.WriteScript(t, bin, "ffprobe", `echo "10.0"`)
	t.Setenv("PATH", bin+":"+os.Getenv("PATH"))
}

func writeSource(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{7}, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
	}()
	defer r.Close()

	fn()

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func fastFlags(in, out string) []string {
	return []string{
		"convert",
		"--input", in,
		"--output", out,
		"--poll-interval", "10ms",
		"--render-interval", "10ms",
		"--color", "never",
	}
}

func TestHarnessConvertBatch(t *testing.T) {
	setupFakeFFmpeg(t)
	tmp := t.TempDir()
	in := filepath.Join(tmp, "input")
	out := filepath.Join(tmp, "output")
	writeSource(t, filepath.Join(in, "day1", "a.MXF"), 1000)
	writeSource(t, filepath.Join(in, "b.mov"), 500)
	writeSource(t, filepath.Join(in, "readme.txt"), 50)
	writeSource(t, filepath.Join(out, "b.mp4"), 10)

	reportPath := filepath.Join(tmp, "report.json")
	metricsPath := filepath.Join(tmp, "metrics.prom")
	args := append(fastFlags(in, out), "--report", reportPath, "--metrics-textfile", metricsPath)

	output := captureStdout(t, func() {
		if err := Run(args); err != nil {
			t.Fatalf("convert failed: %v", err)
		}
	})

	for _, want := range []string{
		"found 2 file(s), total 1.5 KiB",
		"[1/2] " + filepath.Join("day1", "a.MXF"),
		"[2/2] b.mov",
		"skipped: output exists",
		"summary: 2 file(s): 1 succeeded, 1 skipped, 0 failed",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, output)
		}
	}

	if _, err := os.Stat(filepath.Join(out, "day1", "a.mp4")); err != nil {
		t.Fatalf("expected converted output: %v", err)
	}

	report, err := runstore.LoadReport(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	if report.RunID == "" || report.Succeeded != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Results[0].CompressionRatio != 4 {
		t.Fatalf("expected ratio 4, got %v", report.Results[0].CompressionRatio)
	}

	prom, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), `media_normalizer_conversions_total{outcome="skipped"} 1`) {
		t.Fatalf("metrics textfile missing skipped counter:\n%s", prom)
	}
}

func TestHarnessConvertJSON(t *testing.T) {
	setupFakeFFmpeg(t)
	tmp := t.TempDir()
	in := filepath.Join(tmp, "input")
	out := filepath.Join(tmp, "output")
	writeSource(t, filepath.Join(in, "clip.mkv"), 500)

	output := captureStdout(t, func() {
		if err := Run(append(fastFlags(in, out), "--json")); err != nil {
			t.Fatalf("convert failed: %v", err)
		}
	})

	var report model.BatchReport
	if err := json.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("stdout should be only the JSON report: %v\n%s", err, output)
	}
	if report.Total != 1 || report.Succeeded != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Results[0].State != model.StateSucceeded {
		t.Fatalf("unexpected state %s", report.Results[0].State)
	}
}

func TestHarnessConvertFailureReturnsError(t *testing.T) {
	setupFakeFFmpeg(t)
	t.Setenv("FAKE_FFMPEG_FAIL", "1")
	tmp := t.TempDir()
	in := filepath.Join(tmp, "input")
	out := filepath.Join(tmp, "output")
	writeSource(t, filepath.Join(in, "clip.avi"), 500)

	var runErr error
	output := captureStdout(t, func() {
		runErr = Run(fastFlags(in, out))
	})
	if runErr == nil || runErr.Error() != "1 of 1 file(s) failed" {
		t.Fatalf("expected failure count error, got %v", runErr)
	}
	if !strings.Contains(output, "failed ffmpeg exited with code 1") {
		t.Fatalf("expected failure line, got:\n%s", output)
	}
	if !strings.Contains(output, "Conversion failed!") {
		t.Fatalf("expected diagnostics excerpt, got:\n%s", output)
	}
}

func TestHarnessConvertCreatesMissingInput(t *testing.T) {
	setupFakeFFmpeg(t)
	tmp := t.TempDir()
	in := filepath.Join(tmp, "input")

	output := captureStdout(t, func() {
		if err := Run(fastFlags(in, filepath.Join(tmp, "output"))); err != nil {
			t.Fatalf("convert failed: %v", err)
		}
	})
	if !strings.Contains(output, "created input directory") {
		t.Fatalf("expected creation hint, got:\n%s", output)
	}
	if info, err := os.Stat(in); err != nil || !info.IsDir() {
		t.Fatalf("input directory should exist: %v", err)
	}
}

func TestHarnessConvertNoSourceFiles(t *testing.T) {
	setupFakeFFmpeg(t)
	tmp := t.TempDir()
	in := filepath.Join(tmp, "input")
	writeSource(t, filepath.Join(in, "readme.txt"), 10)

	output := captureStdout(t, func() {
		if err := Run(fastFlags(in, filepath.Join(tmp, "output"))); err != nil {
			t.Fatalf("convert failed: %v", err)
		}
	})
	if !strings.Contains(output, "no source videos found in") || !strings.Contains(output, ".mxf .mov") {
		t.Fatalf("expected empty-input hint, got:\n%s", output)
	}
	if strings.Contains(output, "summary:") {
		t.Fatalf("empty batch should not print a summary, got:\n%s", output)
	}
}

func TestHarnessConvertRejectsInvalidCRF(t *testing.T) {
	tmp := t.TempDir()
	err := Run(append(fastFlags(filepath.Join(tmp, "in"), filepath.Join(tmp, "out")), "--crf", "60"))
	if err == nil || !strings.Contains(err.Error(), "invalid crf") {
		t.Fatalf("expected crf validation error, got %v", err)
	}
}

func TestHarnessDoctor(t *testing.T) {
	setupFakeFFmpeg(t)
	tmp := t.TempDir()
	in := filepath.Join(tmp, "input")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}

	output := captureStdout(t, func() {
		if err := Run([]string{"doctor", "--input", in, "--output", filepath.Join(tmp, "output")}); err != nil {
			t.Fatalf("doctor failed: %v", err)
		}
	})
	if !strings.Contains(output, "dependency:ffmpeg: ok") || !strings.Contains(output, "doctor: all checks passed") {
		t.Fatalf("unexpected doctor output:\n%s", output)
	}
}

func TestHarnessProbeJSON(t *testing.T) {
	setupFakeFFmpeg(t)
	output := captureStdout(t, func() {
		if err := Run([]string{"probe", "--json", "clip.mxf"}); err != nil {
			t.Fatalf("probe failed: %v", err)
		}
	})
	var results []probeResult
	if err := json.Unmarshal([]byte(output), &results); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, output)
	}
	if len(results) != 1 || results[0].DurationSeconds != 10 || !results[0].Known {
		t.Fatalf("unexpected probe results: %+v", results)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var err error
	captureStdout(t, func() {
		err = Run([]string{"explode"})
	})
	if err == nil || !strings.Contains(err.Error(), `unknown command "explode"`) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}
