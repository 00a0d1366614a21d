package fbx

import (
	"context"
	"fmt"
	"os"

	"github.com/pithecene-io/skelcap/anim"
	"github.com/pithecene-io/skelcap/export"
)

// Backend writes clips as FBX files.
type Backend struct {
	opts Options
}

var _ export.Backend = (*Backend)(nil)

// New creates an FBX back end.
func New(opts Options) *Backend {
	return &Backend{opts: opts}
}

// Kind returns export.KindFBX.
func (b *Backend) Kind() export.Kind { return export.KindFBX }

// Convention returns anim.ConventionFlipY. FBX scenes store the vertical
// axis with the opposite sign of the depth camera.
func (b *Backend) Convention() anim.Convention { return anim.ConventionFlipY }

// Write encodes clip to path.
func (b *Backend) Write(ctx context.Context, clip *anim.Clip, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create fbx file: %w", err)
	}
	if err := Encode(f, clip, b.opts); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to encode fbx: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close fbx file: %w", err)
	}
	return []string{path}, nil
}
