package gltf

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"

	"github.com/pithecene-io/skelcap/anim"
	"github.com/pithecene-io/skelcap/export"
)

// Backend writes clips as .gltf (JSON plus an external .bin buffer) or
// .glb (single binary container) files.
type Backend struct {
	opts Options
}

var _ export.Backend = (*Backend)(nil)

// New creates a glTF back end.
func New(opts Options) *Backend {
	return &Backend{opts: opts}
}

// Kind returns export.KindGLTF.
func (b *Backend) Kind() export.Kind { return export.KindGLTF }

// Convention returns anim.ConventionCaptured. glTF keeps the captured sign.
func (b *Backend) Convention() anim.Convention { return anim.ConventionCaptured }

// Write builds the document and saves it to path.
func (b *Backend) Write(ctx context.Context, clip *anim.Clip, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := Build(clip, b.opts)
	if err != nil {
		return nil, err
	}

	if export.IsBinaryGLTF(path) {
		if err := gltf.SaveBinary(doc, path); err != nil {
			return nil, fmt.Errorf("failed to save glb: %w", err)
		}
		return []string{path}, nil
	}

	files := []string{path}
	if len(doc.Buffers) > 0 {
		bin := export.Stem(path) + ".bin"
		doc.Buffers[0].URI = bin
		files = append(files, filepath.Join(filepath.Dir(path), bin))
	}
	if err := gltf.Save(doc, path); err != nil {
		return nil, fmt.Errorf("failed to save gltf: %w", err)
	}
	return files, nil
}
