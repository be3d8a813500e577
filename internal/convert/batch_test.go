package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"media-normalizer/internal/discovery"
	"media-normalizer/internal/model"
	"media-normalizer/internal/runstore"
)

type recordingObserver struct {
	mu             sync.Mutex
	discovered     []discovery.SourceFile
	discoveryCalls int
	lateDiscovery  bool
	started        []string
	finished       []model.State
	onStart        func(index int)
}

func (r *recordingObserver) BatchDiscovered(files []discovery.SourceFile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discoveryCalls++
	r.lateDiscovery = len(r.started) > 0
	r.discovered = append([]discovery.SourceFile(nil), files...)
}

func (r *recordingObserver) JobStarted(index, total int, job model.Job) {
	r.mu.Lock()
	r.started = append(r.started, filepath.Base(job.InputPath))
	r.mu.Unlock()
	if r.onStart != nil {
		r.onStart(index)
	}
}

func (r *recordingObserver) JobFinished(index, total int, res model.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res.State)
}

func batchDirs(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	return filepath.Join(root, "input"), filepath.Join(root, "output")
}

func TestBatch_ConvertsLargestFirstAndSkipsExisting(t *testing.T) {
	in, out := batchDirs(t)
	writeInput(t, in, "small.mov", 1000)
	writeInput(t, in, "sub/large.mkv", 3000)
	writeInput(t, in, "notes.txt", 5000)
	writeInput(t, in, "done.avi", 2000)
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(out, "done.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write existing: %v", err)
	}

	obs := &recordingObserver{}
	b := &Batch{Converter: newTestConverter(t, fakeEncodeOK, nil), Observer: obs}
	report, err := b.Run(context.Background(), BatchOptions{
		RunID:      "run-test",
		InputDir:   in,
		OutputDir:  out,
		Extensions: []string{".mov", ".mkv", ".avi"},
		CRF:        23,
		Preset:     "fast",
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	if diff := cmp.Diff([]string{"large.mkv", "done.avi", "small.mov"}, obs.started); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if obs.discoveryCalls != 1 || obs.lateDiscovery {
		t.Fatalf("expected one discovery report before the first job, calls=%d late=%v", obs.discoveryCalls, obs.lateDiscovery)
	}
	if len(obs.discovered) != 3 || discovery.TotalSize(obs.discovered) != 6000 {
		t.Fatalf("unexpected discovered files: %+v", obs.discovered)
	}
	if report.Total != 3 || report.Succeeded != 2 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Interrupted {
		t.Fatalf("batch should not be interrupted")
	}
	if report.InputBytes != 4000 || report.OutputBytes != 800 {
		t.Fatalf("unexpected byte totals: in=%d out=%d", report.InputBytes, report.OutputBytes)
	}
	if _, err := os.Stat(filepath.Join(out, "sub", "large.mp4")); err != nil {
		t.Fatalf("expected mirrored output path: %v", err)
	}
	if report.Results[0].Job.CRF != 23 || report.Results[0].Job.Preset != "fast" {
		t.Fatalf("job settings not carried: %+v", report.Results[0].Job)
	}
	if _, err := os.Stat(filepath.Join(out, ".media-normalizer.lock")); !os.IsNotExist(err) {
		t.Fatalf("lock should be released after the batch")
	}
}

func TestBatch_ReportsEmptyDiscovery(t *testing.T) {
	in, out := batchDirs(t)
	writeInput(t, in, "notes.txt", 10)

	obs := &recordingObserver{}
	b := &Batch{Converter: newTestConverter(t, fakeEncodeOK, nil), Observer: Observers{obs}}
	report, err := b.Run(context.Background(), BatchOptions{RunID: "r", InputDir: in, OutputDir: out, Extensions: []string{".mov"}})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if report.Total != 0 || len(obs.started) != 0 {
		t.Fatalf("expected an empty batch: %+v", report)
	}
	if obs.discoveryCalls != 1 || len(obs.discovered) != 0 {
		t.Fatalf("observer should be told about an empty discovery, calls=%d", obs.discoveryCalls)
	}
}

func TestBatch_RecordsFailuresAndContinues(t *testing.T) {
	in, out := batchDirs(t)
	writeInput(t, in, "a.mov", 2000)
	writeInput(t, in, "b.mov", 1000)

	b := &Batch{Converter: newTestConverter(t, fakeEncodeFail, nil)}
	report, err := b.Run(context.Background(), BatchOptions{RunID: "r", InputDir: in, OutputDir: out, Extensions: []string{".mov"}})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if report.Failed != 2 || len(report.Results) != 2 {
		t.Fatalf("expected both files to fail and be recorded: %+v", report)
	}
	for _, res := range report.Results {
		if res.Diagnostics == "" {
			t.Fatalf("expected diagnostics for %s", res.Job.InputPath)
		}
	}
}

func TestBatch_StopsBetweenFilesWhenCancelled(t *testing.T) {
	in, out := batchDirs(t)
	writeInput(t, in, "first.mov", 3000)
	writeInput(t, in, "second.mov", 2000)
	writeInput(t, in, "third.mov", 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := &recordingObserver{}
	b := &Batch{Converter: newTestConverter(t, fakeEncodeOK, nil), Observer: obs}

	// Cancel after the first file has been converted.
	obs.onStart = func(index int) {
		if index == 2 {
			cancel()
		}
	}
	report, err := b.Run(ctx, BatchOptions{RunID: "r", InputDir: in, OutputDir: out, Extensions: []string{".mov"}})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if !report.Interrupted {
		t.Fatalf("expected interrupted report")
	}
	if report.Succeeded != 1 {
		t.Fatalf("expected the first file to succeed, got %+v", report)
	}
	if len(obs.started) != 2 {
		t.Fatalf("third file must not start, started=%v", obs.started)
	}
	if _, err := os.Stat(filepath.Join(out, "third.mp4")); !os.IsNotExist(err) {
		t.Fatalf("third file must not be converted")
	}
}

func TestBatch_RefusesLockedOutput(t *testing.T) {
	in, out := batchDirs(t)
	writeInput(t, in, "a.mov", 10)
	lock, err := runstore.AcquireLock(out, "other-run")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer func() { _ = lock.Release() }()

	b := &Batch{Converter: newTestConverter(t, fakeEncodeOK, nil)}
	_, err = b.Run(context.Background(), BatchOptions{RunID: "r", InputDir: in, OutputDir: out, Extensions: []string{".mov"}})
	if !errors.Is(err, runstore.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestBatch_RejectsOutputInsideInput(t *testing.T) {
	in, _ := batchDirs(t)
	writeInput(t, in, "a.mov", 10)
	b := &Batch{Converter: newTestConverter(t, fakeEncodeOK, nil)}
	_, err := b.Run(context.Background(), BatchOptions{RunID: "r", InputDir: in, OutputDir: filepath.Join(in, "out"), Extensions: []string{".mov"}})
	if !errors.Is(err, discovery.ErrOutputInsideInput) {
		t.Fatalf("expected ErrOutputInsideInput, got %v", err)
	}
}
