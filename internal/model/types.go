package model

import "time"

// Job describes one file conversion. It is created by the batch driver and
// never modified afterwards.
type Job struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	CRF        int    `json:"crf"`
	Preset     string `json:"preset"`
}

// Result is the reconciled outcome of a Job.
type Result struct {
	Job              Job           `json:"job"`
	State            State         `json:"state"`
	DurationSeconds  float64       `json:"duration_seconds,omitempty"`
	InputBytes       int64         `json:"input_bytes"`
	OutputBytes      int64         `json:"output_bytes,omitempty"`
	CompressionRatio float64       `json:"compression_ratio,omitempty"`
	WallTime         time.Duration `json:"wall_time_ns,omitempty"`
	ExitCode         int           `json:"exit_code,omitempty"`
	Diagnostics      string        `json:"diagnostics,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// BatchReport is the per-run summary written by the batch driver.
type BatchReport struct {
	RunID       string   `json:"run_id"`
	StartedAt   string   `json:"started_at"`
	FinishedAt  string   `json:"finished_at,omitempty"`
	InputDir    string   `json:"input_dir"`
	OutputDir   string   `json:"output_dir"`
	Total       int      `json:"total"`
	Succeeded   int      `json:"succeeded"`
	Skipped     int      `json:"skipped"`
	Failed      int      `json:"failed"`
	Interrupted bool     `json:"interrupted,omitempty"`
	InputBytes  int64    `json:"input_bytes"`
	OutputBytes int64    `json:"output_bytes"`
	Results     []Result `json:"results"`
}

// Add folds a finished result into the report counters.
func (r *BatchReport) Add(res Result) {
	switch res.State {
	case StateSucceeded:
		r.Succeeded++
		r.InputBytes += res.InputBytes
		r.OutputBytes += res.OutputBytes
	case StateSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Results = append(r.Results, res)
}
