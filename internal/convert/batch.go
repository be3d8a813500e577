package convert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"media-normalizer/internal/discovery"
	"media-normalizer/internal/model"
	"media-normalizer/internal/runstore"
)

// Observer is told about every job of a batch, in order.
type Observer interface {
	JobStarted(index, total int, job model.Job)
	JobFinished(index, total int, res model.Result)
}

// DiscoveryObserver is optionally implemented by an Observer that wants the
// batch's file list before the first job starts.
type DiscoveryObserver interface {
	BatchDiscovered(files []discovery.SourceFile)
}

// Observers fans events out to every non-nil observer.
type Observers []Observer

func (o Observers) BatchDiscovered(files []discovery.SourceFile) {
	for _, ob := range o {
		if d, ok := ob.(DiscoveryObserver); ok {
			d.BatchDiscovered(files)
		}
	}
}

func (o Observers) JobStarted(index, total int, job model.Job) {
	for _, ob := range o {
		if ob != nil {
			ob.JobStarted(index, total, job)
		}
	}
}

func (o Observers) JobFinished(index, total int, res model.Result) {
	for _, ob := range o {
		if ob != nil {
			ob.JobFinished(index, total, res)
		}
	}
}

type BatchOptions struct {
	RunID      string
	InputDir   string
	OutputDir  string
	Extensions []string
	CRF        int
	Preset     string
}

// Batch converts every discovered file sequentially.
type Batch struct {
	Converter *Converter
	Observer  Observer
	Logger    *zap.Logger
}

// Run converts the files under opts.InputDir. A cancelled ctx stops the batch
// between files; the returned report then has Interrupted set. Per-file
// failures are recorded in the report, not returned as errors.
func (b *Batch) Run(ctx context.Context, opts BatchOptions) (model.BatchReport, error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := b.Observer
	if observer == nil {
		observer = Observers{}
	}

	report := model.BatchReport{
		RunID:     opts.RunID,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		InputDir:  opts.InputDir,
		OutputDir: opts.OutputDir,
		Results:   []model.Result{},
	}

	if err := discovery.ValidatePaths(opts.InputDir, opts.OutputDir); err != nil {
		return report, err
	}
	lock, err := runstore.AcquireLock(opts.OutputDir, opts.RunID)
	if err != nil {
		return report, err
	}
	defer func() {
		_ = lock.Release()
	}()

	files, err := discovery.Discover(opts.InputDir, opts.Extensions)
	if err != nil {
		return report, err
	}
	report.Total = len(files)
	logger.Info("batch discovered files",
		zap.Int("files", len(files)),
		zap.Int64("bytes", discovery.TotalSize(files)),
	)
	if d, ok := observer.(DiscoveryObserver); ok {
		d.BatchDiscovered(files)
	}

	for i, f := range files {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		outPath, err := discovery.OutputPath(opts.InputDir, opts.OutputDir, f.Path)
		if err != nil {
			return report, fmt.Errorf("map output path: %w", err)
		}
		job := model.Job{
			InputPath:  f.Path,
			OutputPath: outPath,
			CRF:        opts.CRF,
			Preset:     opts.Preset,
		}

		observer.JobStarted(i+1, len(files), job)
		res := b.Converter.Convert(ctx, job)
		report.Add(res)
		observer.JobFinished(i+1, len(files), res)
	}
	if ctx.Err() != nil {
		report.Interrupted = true
	}

	report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	return report, nil
}
