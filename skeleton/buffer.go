package skeleton

import (
	"sync"

	"github.com/pithecene-io/skelcap/types"
)

// Buffer is an append-only sequence of snapshots.
// It is written by the acquisition loop and frozen when handed to export.
type Buffer struct {
	mu        sync.RWMutex
	snapshots []types.SkeletonSnapshot
	frozen    bool
}

// NewBuffer creates an empty buffer with the given capacity hint.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{snapshots: make([]types.SkeletonSnapshot, 0, capacity)}
}

// BufferOf creates a frozen buffer holding the given snapshots.
func BufferOf(snapshots ...types.SkeletonSnapshot) *Buffer {
	b := NewBuffer(len(snapshots))
	for _, s := range snapshots {
		b.Append(s)
	}
	b.Freeze()
	return b
}

// Append adds a snapshot at the end. It panics after Freeze.
func (b *Buffer) Append(s types.SkeletonSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		panic("skeleton: append to frozen buffer")
	}
	b.snapshots = append(b.snapshots, s)
}

// Freeze makes the buffer read-only.
func (b *Buffer) Freeze() {
	b.mu.Lock()
	b.frozen = true
	b.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (b *Buffer) Frozen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frozen
}

// Len returns the number of snapshots.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snapshots)
}

// At returns snapshot i.
func (b *Buffer) At(i int) types.SkeletonSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshots[i]
}

// Snapshots returns a copy of every snapshot in insertion order.
func (b *Buffer) Snapshots() []types.SkeletonSnapshot {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]types.SkeletonSnapshot(nil), b.snapshots...)
}

// TimeAt returns the animation time of index i at the given frame rate.
func TimeAt(i int, rate float64) float64 {
	return float64(i) / rate
}
