package model

const DefaultHistorySize = 50

// History is a pair of fixed-capacity speed windows. The oldest sample is
// evicted first once capacity is reached.
type History struct {
	Capacity int       `json:"capacity"`
	In       []float64 `json:"in"`
	Out      []float64 `json:"out"`
}

func NewHistory(capacity int) History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return History{
		Capacity: capacity,
		In:       make([]float64, 0, capacity),
		Out:      make([]float64, 0, capacity),
	}
}

func (h *History) Push(in, out float64) {
	h.In = pushBounded(h.In, in, h.Capacity)
	h.Out = pushBounded(h.Out, out, h.Capacity)
}

func pushBounded(window []float64, v float64, capacity int) []float64 {
	window = append(window, v)
	if len(window) > capacity {
		window = append(window[:0], window[1:]...)
	}
	return window
}

// Average divides the window sum by the configured capacity, not by the
// number of samples held, so it under-reports until the window is full.
func (h History) Average() (in, out float64) {
	if h.Capacity <= 0 {
		return 0, 0
	}
	return sum(h.In) / float64(h.Capacity), sum(h.Out) / float64(h.Capacity)
}

func (h History) Len() int {
	return len(h.In)
}

func (h History) Clone() History {
	return History{
		Capacity: h.Capacity,
		In:       append(make([]float64, 0, h.Capacity), h.In...),
		Out:      append(make([]float64, 0, h.Capacity), h.Out...),
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
