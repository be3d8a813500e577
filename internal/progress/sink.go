package progress

// Sink receives the samples of one conversion. Finish is called once when the
// conversion's progress output ends.
type Sink interface {
	Update(s Sample)
	Finish()
}

type discardSink struct{}

func (discardSink) Update(Sample) {}
func (discardSink) Finish()       {}

// Discard drops every sample.
var Discard Sink = discardSink{}

// MultiSink fans samples out to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) Update(s Sample) {
	for _, sink := range m {
		if sink != nil {
			sink.Update(s)
		}
	}
}

func (m MultiSink) Finish() {
	for _, sink := range m {
		if sink != nil {
			sink.Finish()
		}
	}
}
