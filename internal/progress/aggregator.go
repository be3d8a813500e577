package progress

import (
	"context"
	"time"
)

const (
	DefaultRenderInterval = time.Second
	DefaultStaleAfter     = 3 * DefaultRenderInterval
)

// Aggregator is the single owner of progress output for one conversion. It
// keeps the latest estimate of each monitor and emits one sample per
// interval to Sink.
type Aggregator struct {
	Label      string
	Interval   time.Duration
	StaleAfter time.Duration
	Start      time.Time
	Sink       Sink
}

// Run consumes estimates until in is closed or ctx is done, then emits a
// final sample and finishes the sink. It returns the last emitted sample.
func (a *Aggregator) Run(ctx context.Context, in <-chan Estimate) (Sample, bool) {
	interval := a.Interval
	if interval <= 0 {
		interval = DefaultRenderInterval
	}
	staleAfter := a.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	sink := a.Sink
	if sink == nil {
		sink = Discard
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var stream, size *Estimate
	var last Sample
	var emitted bool

	keep := func(e Estimate) {
		switch e.Source {
		case SourceStream:
			// speed= only appears on the stderr stats line.
			if e.Speed == "" && stream != nil {
				e.Speed = stream.Speed
			}
			stream = &e
		case SourceSize:
			size = &e
		}
	}
	emit := func(now time.Time) {
		s, ok := Select(stream, size, now, staleAfter)
		if !ok {
			return
		}
		s.Label = a.Label
		if !a.Start.IsZero() {
			s.Elapsed = now.Sub(a.Start)
		}
		last, emitted = s, true
		sink.Update(s)
	}
	finish := func() (Sample, bool) {
		emit(time.Now())
		sink.Finish()
		return last, emitted
	}

	for {
		select {
		case e, ok := <-in:
			if !ok {
				return finish()
			}
			keep(e)
		case now := <-ticker.C:
			emit(now)
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-in:
					if !ok {
						return finish()
					}
					keep(e)
				default:
					return finish()
				}
			}
		}
	}
}

// Select applies the display precedence: a stream estimate with a known
// percentage no older than staleAfter wins, then the latest size estimate,
// then whatever stream estimate there is (media time only). Size facts
// (throughput, bytes written) and the media position are carried over from
// the other monitor when present.
func Select(stream, size *Estimate, now time.Time, staleAfter time.Duration) (Sample, bool) {
	var chosen *Estimate
	switch {
	case stream != nil && stream.PercentKnown && now.Sub(stream.At) <= staleAfter:
		chosen = stream
	case size != nil:
		chosen = size
	case stream != nil:
		chosen = stream
	default:
		return Sample{}, false
	}

	s := Sample{
		Source:         chosen.Source,
		Percent:        clampPercent(chosen.Percent),
		PercentKnown:   chosen.PercentKnown,
		Elapsed:        chosen.Elapsed,
		Remaining:      chosen.Remaining,
		RemainingKnown: chosen.RemainingKnown,
		At:             now,
	}
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	if size != nil {
		s.Throughput = size.Throughput
		s.OutputBytes = size.OutputBytes
	}
	if stream != nil {
		s.MediaTime = stream.MediaTime
		s.Speed = stream.Speed
	}
	return s, true
}
