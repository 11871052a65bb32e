// Package dedup answers "have I processed this event id before" with
// bounded memory.
//
// A bloom filter takes the first look: a miss there is definitive (no
// false negatives) and is the dominant cheap path. A bloom hit is only
// "maybe", so it defers to a bounded LRU of recently seen ids for the
// exact answer. The bloom filter is rebuilt empty once enough inserts
// have accumulated, which bounds its occupancy and false-positive rate;
// the LRU survives resets so short-term duplicate suppression is
// continuous across the boundary.
package dedup

import (
	"container/list"
	"fmt"
	"sync"

	boom "github.com/tylertreat/BoomFilters"
)

// Options controls deduplicator sizing.
type Options struct {
	BloomCapacity  uint
	BloomFPRate    float64
	ExactCapacity  int
	ResetThreshold uint64
}

// Deduplicator is a bounded-memory seen-set for event ids.
// Safe for concurrent use.
type Deduplicator struct {
	mu      sync.Mutex
	bloom   *boom.BloomFilter
	exact   *recentSet
	opts    Options
	inserts uint64
	resets  uint64
}

// New creates a Deduplicator. Capacities must be positive; a zero-capacity
// deduplicator would silently degrade to "no dedup", so construction fails
// instead.
func New(opts Options) (*Deduplicator, error) {
	if opts.BloomCapacity == 0 {
		return nil, fmt.Errorf("bloom capacity must be greater than zero")
	}
	if opts.BloomFPRate <= 0 || opts.BloomFPRate >= 1 {
		return nil, fmt.Errorf("bloom false-positive rate must be in (0, 1)")
	}
	if opts.ExactCapacity <= 0 {
		return nil, fmt.Errorf("exact capacity must be greater than zero")
	}
	if opts.ResetThreshold == 0 {
		opts.ResetThreshold = uint64(opts.BloomCapacity)
	}

	return &Deduplicator{
		bloom: boom.NewBloomFilter(opts.BloomCapacity, opts.BloomFPRate),
		exact: newRecentSet(opts.ExactCapacity),
		opts:  opts,
	}, nil
}

// IsDuplicate reports whether the id has been marked seen.
func (d *Deduplicator) IsDuplicate(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.bloom.Test([]byte(id)) {
		return false
	}
	// Bloom says "maybe" — the exact set settles it.
	return d.exact.contains(id)
}

// MarkSeen records the id in both layers and applies the auto-reset
// policy once the insert counter crosses the threshold.
func (d *Deduplicator) MarkSeen(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.bloom.Add([]byte(id))
	d.exact.add(id)
	d.inserts++

	if d.inserts >= d.opts.ResetThreshold {
		d.bloom.Reset()
		d.inserts = 0
		d.resets++
	}
}

// Reset rebuilds the bloom filter empty. The exact set is untouched.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.bloom.Reset()
	d.inserts = 0
	d.resets++
}

// Resets returns how many times the bloom layer has been rebuilt.
func (d *Deduplicator) Resets() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// recentSet is a fixed-capacity LRU set of ids.
type recentSet struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newRecentSet(capacity int) *recentSet {
	return &recentSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

func (r *recentSet) contains(id string) bool {
	elem, ok := r.index[id]
	if ok {
		r.order.MoveToFront(elem)
	}
	return ok
}

func (r *recentSet) add(id string) {
	if elem, ok := r.index[id]; ok {
		r.order.MoveToFront(elem)
		return
	}

	r.index[id] = r.order.PushFront(id)

	if r.order.Len() > r.capacity {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(string))
	}
}
