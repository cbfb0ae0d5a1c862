// Package queue provides a bounded top-k selection heap for search results.
package queue

import (
	"sort"

	"github.com/hupe1980/sentvec/model"
)

// TopK keeps the k best results seen so far.
// Results rank by descending score; equal scores rank by ascending id.
// Internally it is a value-based binary heap whose root is the worst kept result.
type TopK struct {
	k     int
	items []model.Result
}

// NewTopK creates a selector keeping at most k results.
func NewTopK(k int) *TopK {
	return &TopK{
		k:     k,
		items: make([]model.Result, 0, min(k, 1024)),
	}
}

// Better reports whether a ranks before b.
func Better(a, b model.Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// Len returns the number of kept results.
func (q *TopK) Len() int { return len(q.items) }

// Push offers a result. It is kept if there is room or it beats the worst kept result.
func (q *TopK) Push(r model.Result) {
	if q.k <= 0 {
		return
	}
	if len(q.items) < q.k {
		q.items = append(q.items, r)
		q.siftUp(len(q.items) - 1)
		return
	}
	if Better(r, q.items[0]) {
		q.items[0] = r
		q.siftDown(0)
	}
}

// Worst returns the worst kept result.
func (q *TopK) Worst() (model.Result, bool) {
	if len(q.items) == 0 {
		return model.Result{}, false
	}
	return q.items[0], true
}

// Full reports whether k results are kept.
func (q *TopK) Full() bool { return len(q.items) >= q.k }

// Results drains the selector and returns the kept results best first.
func (q *TopK) Results() []model.Result {
	out := q.items
	q.items = nil
	sort.Slice(out, func(i, j int) bool { return Better(out[i], out[j]) })
	return out
}

// less orders the heap so the root is the worst result.
func (q *TopK) less(i, j int) bool {
	return Better(q.items[j], q.items[i])
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}

// Merge combines result lists into the k best, ranked as above.
func Merge(k int, lists ...[]model.Result) []model.Result {
	q := NewTopK(k)
	for _, l := range lists {
		for _, r := range l {
			q.Push(r)
		}
	}
	return q.Results()
}
