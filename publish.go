package dualcam

// Publisher hands a finalized container file to system storage (e.g. the
// device media library). It is a black box to the pipeline: each finished
// output is published exactly once, and failures are logged, not retried.
type Publisher interface {
	Publish(path string) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(path string) error

// Publish calls f(path).
func (f PublisherFunc) Publish(path string) error { return f(path) }
