package logic

// sampleWindow is a fixed-capacity FIFO of the most recent samples.
// Not safe for concurrent use.
type sampleWindow struct {
	buf   []Sample
	head  int // next write position
	count int
}

func newSampleWindow(capacity int) *sampleWindow {
	return &sampleWindow{buf: make([]Sample, capacity)}
}

// push appends s, overwriting the oldest sample when full.
func (w *sampleWindow) push(s Sample) {
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

func (w *sampleWindow) len() int {
	return w.count
}

// averageFlow returns the mean of max(0, flow) across the window.
func (w *sampleWindow) averageFlow() float64 {
	if w.count == 0 {
		return 0
	}
	var sum float64
	start := (w.head - w.count + len(w.buf)) % len(w.buf)
	for i := 0; i < w.count; i++ {
		sum += max(0, w.buf[(start+i)%len(w.buf)].Flow)
	}
	return sum / float64(w.count)
}
