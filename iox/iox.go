// Package iox provides close helpers for devices, trackers and files.
package iox

import (
	"io"
	"sync"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(listener))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

// Close calls f.
func (f CloserFunc) Close() error { return f() }

// DiscardErr calls fn and discards the returned error.
func DiscardErr(fn func() error) { _ = fn() }

// OnceCloser wraps a Closer so the underlying Close runs at most once.
// Later calls return the first call's error. Sessions and trackers are
// wrapped in it so every teardown path can close unconditionally.
type OnceCloser struct {
	once sync.Once
	c    io.Closer
	err  error
}

// NewOnceCloser wraps c. A nil c makes Close a no-op.
func NewOnceCloser(c io.Closer) *OnceCloser {
	return &OnceCloser{c: c}
}

// Close closes the wrapped Closer on the first call only.
func (o *OnceCloser) Close() error {
	o.once.Do(func() {
		if o.c != nil {
			o.err = o.c.Close()
		}
	})
	return o.err
}

// CloseAll closes every closer in order and returns the first error.
func CloseAll(cs ...io.Closer) error {
	var first error
	for _, c := range cs {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
