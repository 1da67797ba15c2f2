package stats

import "container/heap"

// cursor walks one sorted sequence
type cursor struct {
	seq []float64
	pos int
}

func (c *cursor) head() float64 { return c.seq[c.pos] }

// mergeHeap is a min-heap of cursors keyed on their current head
type mergeHeap []*cursor

func (h mergeHeap) Len() int           { return len(h) }
func (h mergeHeap) Less(i, j int) bool { return h[i].head() < h[j].head() }
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// kthSmallestPair merges the sorted sequences only as far as index hi and
// returns the values at ranks lo and hi (zero-based, lo <= hi) of the
// combined order. The inputs are not modified.
func kthSmallestPair(seqs [][]float64, lo, hi int) (float64, float64) {
	h := make(mergeHeap, 0, len(seqs))
	for _, s := range seqs {
		if len(s) > 0 {
			h = append(h, &cursor{seq: s})
		}
	}
	heap.Init(&h)

	var a, b float64
	for rank := 0; rank <= hi; rank++ {
		c := h[0]
		v := c.head()
		if rank == lo {
			a = v
		}
		if rank == hi {
			b = v
		}
		c.pos++
		if c.pos == len(c.seq) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return a, b
}

// mergedMedian returns the median of the union of sorted sequences holding
// n values in total. An even n averages the two middle values.
func mergedMedian(seqs [][]float64, n int) float64 {
	lo, hi := (n-1)/2, n/2
	a, b := kthSmallestPair(seqs, lo, hi)
	if lo == hi {
		return a
	}
	return a + (b-a)/2
}
