package mnist

import "math/rand"

// Loader is a pull-based batch iterator over a Dataset. When shuffling is
// enabled the order is re-drawn on every Reset from the injected generator.
type Loader struct {
	ds        *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand

	order []int
	pos   int
}

// NewLoader creates a Loader. rng may be nil when shuffle is false.
func NewLoader(ds *Dataset, batchSize int, shuffle bool, rng *rand.Rand) *Loader {
	if batchSize <= 0 {
		panic("mnist: batch size must be positive")
	}
	if shuffle && rng == nil {
		panic("mnist: shuffling requires a random source")
	}

	order := make([]int, ds.Len())
	for i := range order {
		order[i] = i
	}
	l := &Loader{
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		order:     order,
	}
	l.Reset()
	return l
}

// Next returns the next batch, or ok=false when the pass is exhausted.
// The final batch of a pass may be smaller than the batch size.
// Image slices are views into the dataset, not copies.
func (l *Loader) Next() (x [][]float64, y []int, ok bool) {
	if l.pos >= len(l.order) {
		return nil, nil, false
	}

	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}

	x = make([][]float64, 0, end-l.pos)
	y = make([]int, 0, end-l.pos)
	for _, idx := range l.order[l.pos:end] {
		x = append(x, l.ds.Images[idx])
		y = append(y, l.ds.Labels[idx])
	}
	l.pos = end
	return x, y, true
}

// Reset rewinds the loader, reshuffling if enabled.
func (l *Loader) Reset() {
	l.pos = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Batches returns the number of batches in one pass.
func (l *Loader) Batches() int {
	return (len(l.order) + l.batchSize - 1) / l.batchSize
}
