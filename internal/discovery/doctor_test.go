package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"media-normalizer/internal/ffmpeg"
	"media-normalizer/internal/testutil"
)

func fakeTool(t *testing.T, withProbe bool) *ffmpeg.Tool {
	t.Helper()
	bin := t.TempDir()
	ffmpegBin := testutil.WriteScript(t, bin, "ffmpeg", "exit 0")
	probe := filepath.Join(bin, "ffprobe")
	if withProbe {
		probe = testutil.WriteScript(t, bin, "ffprobe", "exit 0")
	}
	return ffmpeg.NewTool(ffmpegBin, probe, nil)
}

func TestDoctor_AllChecksPass(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "input")
	if err := os.Mkdir(in, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	res := Doctor(DoctorOptions{InputDir: in, OutputDir: filepath.Join(root, "output"), Tool: fakeTool(t, true)})
	if !res.OK {
		t.Fatalf("expected doctor to pass: %+v", res.Checks)
	}
	if len(res.Checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(res.Checks))
	}
}

func TestDoctor_ReportsMissingPieces(t *testing.T) {
	root := t.TempDir()
	res := Doctor(DoctorOptions{InputDir: filepath.Join(root, "missing"), OutputDir: filepath.Join(root, "out"), Tool: fakeTool(t, false)})
	if res.OK {
		t.Fatalf("expected doctor to fail")
	}

	byName := map[string]DoctorCheck{}
	for _, c := range res.Checks {
		byName[c.Name] = c
	}
	if !byName["dependency:ffmpeg"].OK {
		t.Fatalf("ffmpeg should resolve: %+v", byName["dependency:ffmpeg"])
	}
	if byName["dependency:ffprobe"].OK {
		t.Fatalf("ffprobe should be missing: %+v", byName["dependency:ffprobe"])
	}
	if byName["directory:input"].OK {
		t.Fatalf("missing input directory should fail: %+v", byName["directory:input"])
	}
	if !byName["directory:output"].OK {
		t.Fatalf("output directory should be created and writable: %+v", byName["directory:output"])
	}
}
