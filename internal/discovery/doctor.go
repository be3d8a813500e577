package discovery

import (
	"os"
	"strings"

	"media-normalizer/internal/ffmpeg"
	"media-normalizer/internal/runstore"
)

type DoctorOptions struct {
	InputDir  string
	OutputDir string
	Tool      *ffmpeg.Tool
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Doctor checks that the encoder binaries resolve, that the input directory
// is readable and that the output directory is writable.
func Doctor(opts DoctorOptions) DoctorResult {
	tool := opts.Tool
	if tool == nil {
		tool = ffmpeg.NewTool("", "", nil)
	}

	checks := make([]DoctorCheck, 0, 4)
	dep := tool.DependencyStatus()
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, tool.FFmpegPath),
	})
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffprobe",
		OK:      dep.FFprobeFound,
		Message: dependencyMessage(dep.FFprobeFound, dep.FFprobePath, tool.FFprobePath),
	})

	inOK, inMessage := checkReadableDir(opts.InputDir)
	checks = append(checks, DoctorCheck{
		Name:    "directory:input",
		OK:      inOK,
		Message: inMessage,
	})

	outOK, outMessage := ensureWritableDir(opts.OutputDir)
	checks = append(checks, DoctorCheck{
		Name:    "directory:output",
		OK:      outOK,
		Message: outMessage,
	})

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func checkReadableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "missing (created on first convert run)"
		}
		return false, err.Error()
	}
	if !info.IsDir() {
		return false, "not a directory"
	}
	if _, err := os.ReadDir(path); err != nil {
		return false, err.Error()
	}
	return true, "readable"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "media-normalizer-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
