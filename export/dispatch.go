package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pithecene-io/skelcap/anim"
	"github.com/pithecene-io/skelcap/skeleton"
)

// Backend writes a synthesized clip to a file.
type Backend interface {
	// Kind returns the kind this back end serves.
	Kind() Kind
	// Convention returns the axis convention the target format expects.
	Convention() anim.Convention
	// Write writes clip to path. It may create sibling files (for example
	// an external glTF buffer) and returns every path it wrote.
	Write(ctx context.Context, clip *anim.Clip, path string) ([]string, error)
}

// Result describes a completed export.
type Result struct {
	Kind   Kind
	Path   string
	Files  []string
	Frames int
}

// Dispatcher selects a back end by output kind.
type Dispatcher struct {
	backends map[Kind]Backend
}

// NewDispatcher registers the given back ends. A later back end of the
// same kind replaces an earlier one.
func NewDispatcher(backends ...Backend) *Dispatcher {
	d := &Dispatcher{backends: make(map[Kind]Backend, len(backends))}
	for _, b := range backends {
		d.backends[b.Kind()] = b
	}
	return d
}

// Backend returns the back end registered for kind.
func (d *Dispatcher) Backend(kind Kind) (Backend, bool) {
	b, ok := d.backends[kind]
	return b, ok
}

// Validate checks that path selects a registered back end without
// invoking it.
func (d *Dispatcher) Validate(path string) (Kind, error) {
	kind, err := KindOf(path)
	if err != nil {
		return "", err
	}
	if _, ok := d.backends[kind]; !ok {
		return "", fmt.Errorf("no %s back end registered: %w", kind, ErrInvalidOutputType)
	}
	return kind, nil
}

// Dispatch synthesizes buf against h, converts the clip to the selected
// back end's axis convention and writes it to path.
//
// An unrecognized extension returns ErrInvalidOutputType without
// invoking any back end. Back end failures are returned as *BackendError.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, buf *skeleton.Buffer, h *skeleton.Hierarchy) (*Result, error) {
	kind, err := d.Validate(path)
	if err != nil {
		return nil, err
	}
	backend := d.backends[kind]

	clip, err := anim.Synthesize(buf, h, anim.Options{Name: Stem(path)})
	if err != nil {
		return nil, &BackendError{Kind: kind, Path: path, Err: err}
	}
	files, err := backend.Write(ctx, clip.WithConvention(backend.Convention()), path)
	if err != nil {
		return nil, &BackendError{Kind: kind, Path: path, Err: err}
	}
	return &Result{Kind: kind, Path: path, Files: files, Frames: clip.FrameCount()}, nil
}

// PrepareOutput checks that path is free (unless overwrite is set) and
// creates its parent directory.
func PrepareOutput(path string, overwrite bool) error {
	if !overwrite {
		_, err := os.Stat(path)
		if err == nil {
			return ErrOutputExists
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat output: %w", err)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return nil
}
