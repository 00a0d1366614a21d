package gltf

import (
	"fmt"

	"github.com/qmuntal/gltf"
)

// Summary describes a glTF asset written by Build.
type Summary struct {
	Generator  string
	Nodes      []string
	Joints     int
	Animation  string
	Channels   int
	Keys       int
	Duration   float64
	Buffers    int
	BufferURIs []string
}

// Inspect opens a .gltf or .glb file and summarizes it.
func Inspect(path string) (*Summary, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gltf: %w", err)
	}
	return Summarize(doc), nil
}

// Summarize describes an in-memory document.
func Summarize(doc *gltf.Document) *Summary {
	s := &Summary{
		Generator: doc.Asset.Generator,
		Buffers:   len(doc.Buffers),
	}
	for _, n := range doc.Nodes {
		s.Nodes = append(s.Nodes, n.Name)
		if n.Name != SkeletonNodeName {
			s.Joints++
		}
	}
	for _, b := range doc.Buffers {
		if b.URI != "" {
			s.BufferURIs = append(s.BufferURIs, b.URI)
		}
	}
	if len(doc.Animations) == 0 {
		return s
	}
	a := doc.Animations[0]
	s.Animation = a.Name
	s.Channels = len(a.Channels)
	if len(a.Samplers) > 0 {
		if idx := int(a.Samplers[0].Input); idx < len(doc.Accessors) {
			acc := doc.Accessors[idx]
			s.Keys = int(acc.Count)
			if len(acc.Max) > 0 {
				s.Duration = float64(acc.Max[0])
			}
		}
	}
	return s
}
