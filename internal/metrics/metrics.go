package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"media-normalizer/internal/model"
	"media-normalizer/internal/progress"
)

// Metrics is a per-batch collector set on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	conversions     *prometheus.CounterVec
	wallSeconds     prometheus.Histogram
	inputBytes      prometheus.Counter
	outputBytes     prometheus.Counter
	batchFiles      prometheus.Gauge
	progressPercent prometheus.Gauge
	progressSource  *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		// Counters
		conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "media_normalizer_conversions_total",
			Help: "Finished conversions by outcome",
		}, []string{"outcome"}),
		inputBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "media_normalizer_input_bytes_total",
			Help: "Bytes read from successfully converted inputs",
		}),
		outputBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "media_normalizer_output_bytes_total",
			Help: "Bytes written to successfully converted outputs",
		}),
		// Gauges
		batchFiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "media_normalizer_batch_files",
			Help: "Files discovered for the current batch",
		}),
		progressPercent: f.NewGauge(prometheus.GaugeOpts{
			Name: "media_normalizer_progress_percent",
			Help: "Displayed completion of the running conversion",
		}),
		progressSource: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "media_normalizer_progress_source",
			Help: "1 for the estimator currently driving the displayed progress",
		}, []string{"source"}),
		// Histograms
		wallSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "media_normalizer_conversion_duration_seconds",
			Help:    "Wall time of ffmpeg runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		}),
	}
}

// Update implements progress.Sink.
func (m *Metrics) Update(s progress.Sample) {
	if s.PercentKnown {
		m.progressPercent.Set(s.Percent)
	}
	for _, src := range []progress.Source{progress.SourceSize, progress.SourceStream} {
		v := 0.0
		if s.Source == src {
			v = 1
		}
		m.progressSource.WithLabelValues(string(src)).Set(v)
	}
}

// Finish implements progress.Sink.
func (m *Metrics) Finish() {
	m.progressPercent.Set(0)
	m.progressSource.Reset()
}

func (m *Metrics) JobStarted(index, total int, job model.Job) {
	m.batchFiles.Set(float64(total))
}

func (m *Metrics) JobFinished(index, total int, res model.Result) {
	m.conversions.WithLabelValues(string(res.State)).Inc()
	if res.State != model.StateSucceeded {
		return
	}
	m.inputBytes.Add(float64(res.InputBytes))
	m.outputBytes.Add(float64(res.OutputBytes))
	if res.WallTime > 0 {
		m.wallSeconds.Observe(res.WallTime.Seconds())
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
