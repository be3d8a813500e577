package progress

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"
)

func TestParseLine_HalfwayAt120Seconds(t *testing.T) {
	p := &StreamParser{Duration: 120}
	est, ok := p.parseLine("frame= 1440 fps= 48 q=28.0 size=   10240KiB time=00:01:00.00 bitrate=1398.1kbits/s speed=2.0x", 30*time.Second)
	if !ok {
		t.Fatalf("expected a time marker to be found")
	}
	if math.Abs(est.Percent-50) > 1e-9 || !est.PercentKnown {
		t.Fatalf("unexpected percent: %+v", est)
	}
	if est.MediaTime != 60 {
		t.Fatalf("unexpected media time: %v", est.MediaTime)
	}
	if est.Speed != "2.0x" {
		t.Fatalf("unexpected speed: %q", est.Speed)
	}
	// 30s wall at 50% means 60s total, 30s left.
	if !est.RemainingKnown || est.Remaining != 30*time.Second {
		t.Fatalf("unexpected remaining: %+v", est)
	}
}

func TestParseLine_ProgressChannel(t *testing.T) {
	p := &StreamParser{Duration: 200}
	if _, ok := p.parseLine("out_time_us=50000000", time.Second); ok {
		t.Fatalf("out_time_us must not be taken as a clock")
	}
	if _, ok := p.parseLine("out_time_ms=50000000", time.Second); ok {
		t.Fatalf("out_time_ms must not be taken as a clock")
	}
	est, ok := p.parseLine("out_time=00:00:50.000000", 10*time.Second)
	if !ok || est.Percent != 25 {
		t.Fatalf("unexpected estimate for out_time: ok=%v %+v", ok, est)
	}
}

func TestParseLine_UnknownDurationSuppressesPercent(t *testing.T) {
	p := &StreamParser{Duration: 0}
	est, ok := p.parseLine("frame=10 time=00:00:05.00 bitrate=N/A speed=N/A", 5*time.Second)
	if !ok {
		t.Fatalf("expected media time to be reported")
	}
	if est.PercentKnown || est.RemainingKnown || est.Percent != 0 {
		t.Fatalf("percent and ETA must be suppressed: %+v", est)
	}
	if est.MediaTime != 5 {
		t.Fatalf("unexpected media time: %v", est.MediaTime)
	}
	if est.Speed != "" {
		t.Fatalf("N/A speed should be dropped, got %q", est.Speed)
	}
}

func TestParseLine_ZeroPercentHasNoETA(t *testing.T) {
	p := &StreamParser{Duration: 100}
	est, ok := p.parseLine("time=00:00:00.00", 3*time.Second)
	if !ok {
		t.Fatalf("expected estimate")
	}
	if est.RemainingKnown {
		t.Fatalf("no ETA at 0%%: %+v", est)
	}
}

func TestParseLine_IgnoresOtherLines(t *testing.T) {
	p := &StreamParser{Duration: 100}
	for _, line := range []string{
		"Input #0, mxf, from 'in.mxf':",
		"  Duration: 00:02:00.00, start: 0.000000, bitrate: 50000 kb/s",
		"progress=continue",
		"",
	} {
		if _, ok := p.parseLine(line, time.Second); ok {
			t.Fatalf("unexpected estimate for %q", line)
		}
	}
}

func TestStreamParserRun_ReadsUntilEOF(t *testing.T) {
	input := "Stream mapping:\n" +
		"frame=1 time=00:00:30.00 speed=1x\r" +
		"frame=2 time=00:01:00.00 speed=1x\r" +
		"frame=3 time=00:01:30.00 speed=1x"
	p := &StreamParser{Duration: 120, Start: time.Now().Add(-time.Minute)}
	estimates := make(chan Estimate, 8)
	var tapped []string

	p.Run(context.Background(), strings.NewReader(input), estimates, func(line string) {
		tapped = append(tapped, line)
	})
	close(estimates)

	if len(tapped) != 4 {
		t.Fatalf("expected every line tapped, got %d: %q", len(tapped), tapped)
	}
	var pcts []float64
	for est := range estimates {
		pcts = append(pcts, est.Percent)
	}
	if len(pcts) != 3 || pcts[0] != 25 || pcts[1] != 50 || pcts[2] != 75 {
		t.Fatalf("unexpected percents: %v", pcts)
	}
}

func TestStreamParserRun_DrainsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	estimates := make(chan Estimate)
	tapped := 0
	p := &StreamParser{Duration: 10}
	p.Run(ctx, strings.NewReader("time=00:00:01.00\ntime=00:00:02.00\n"), estimates, func(string) { tapped++ })

	if tapped != 2 {
		t.Fatalf("expected lines to be drained after cancel, tapped %d", tapped)
	}
}

func TestStreamParserRun_ConsumesRestAfterOverlongLine(t *testing.T) {
	input := "time=00:00:01.00\n" + strings.Repeat("x", 2<<20) + "\n" + strings.Repeat("y", 1<<20)
	r := strings.NewReader(input)
	estimates := make(chan Estimate, 8)

	p := &StreamParser{Duration: 10}
	p.Run(context.Background(), r, estimates, nil)

	if r.Len() != 0 {
		t.Fatalf("expected the reader to be consumed to EOF, %d bytes left", r.Len())
	}
	if len(estimates) != 1 {
		t.Fatalf("expected the estimate before the overlong line, got %d", len(estimates))
	}
}

func TestStreamParserRun_ConsumesRestAfterPanic(t *testing.T) {
	r := strings.NewReader("time=00:00:01.00\ntime=00:00:02.00\ntime=00:00:03.00\n")
	p := &StreamParser{Duration: 10}
	p.Run(context.Background(), r, make(chan Estimate, 8), func(string) { panic("tap failed") })

	if r.Len() != 0 {
		t.Fatalf("expected the reader to be consumed after a panic, %d bytes left", r.Len())
	}
}
