package render

// Histogram counts sample points per bucket.
type Histogram []int

func NewHistogram(buckets int) Histogram { return make(Histogram, buckets) }

func (h Histogram) Add(bucket int) { h[bucket]++ }

// Merge adds the counts of o, which must have the same number of buckets.
func (h Histogram) Merge(o Histogram) {
	if len(o) != len(h) {
		panic("render: merging histograms of different sizes")
	}
	for i, n := range o {
		h[i] += n
	}
}

func (h Histogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Accumulate turns h into its running sum in place and returns the total.
func (h Histogram) Accumulate() int {
	sum := 0
	for i, n := range h {
		sum += n
		h[i] = sum
	}
	return sum
}

// Cumulative returns the cumulative frequency of every bucket, leaving h intact.
// The result is non-decreasing and ends at 1 unless h is empty.
func (h Histogram) Cumulative() []float64 {
	acc := make(Histogram, len(h))
	copy(acc, h)
	total := acc.Accumulate()

	freq := make([]float64, len(acc))
	if total == 0 {
		return freq
	}
	for i, n := range acc {
		freq[i] = float64(n) / float64(total)
	}
	return freq
}
