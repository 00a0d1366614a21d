// Package gltf writes skeleton animation clips as glTF 2.0 assets.
package gltf

import (
	"fmt"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/pithecene-io/skelcap/anim"
	"github.com/pithecene-io/skelcap/types"
)

// SkeletonNodeName names the node that parents the joint hierarchy.
const SkeletonNodeName = "Skeleton"

// Options configures document building.
type Options struct {
	// Scale multiplies every translation. Zero means 1 (millimetres).
	Scale float64
}

// jointNode maps a joint id to its node index. Node 0 is the skeleton node.
func jointNode(id int) uint32 { return uint32(id) + 1 }

// Build converts clip into a glTF document: one node per joint under a
// skeleton node, and one animation whose samplers share a single time
// accessor and drive each joint's translation with linear interpolation.
// An empty clip gives the node hierarchy without an animation.
func Build(clip *anim.Clip, opts Options) (*gltf.Document, error) {
	if err := clip.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clip: %w", err)
	}
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "skelcap " + types.Version

	h := clip.Hierarchy
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: SkeletonNodeName})
	for _, j := range h.Joints() {
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: j.Name})
	}
	for _, j := range h.Joints() {
		var parent uint32
		if !j.IsRoot() {
			parent = jointNode(int(j.Parent))
		}
		doc.Nodes[parent].Children = append(doc.Nodes[parent].Children, jointNode(int(j.ID)))
	}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	n := clip.FrameCount()
	if n == 0 {
		return doc, nil
	}

	times := make([]float32, n)
	for i, t := range clip.Times() {
		times[i] = float32(t)
	}
	timeIdx := modeler.WriteAccessor(doc, gltf.TargetNone, times)
	acc := doc.Accessors[timeIdx]
	acc.Min = []float32{times[0]}
	acc.Max = []float32{times[n-1]}

	animation := &gltf.Animation{Name: clip.Name}
	for _, j := range h.Joints() {
		curves := clip.Curves(j.ID)
		positions := make([][3]float32, n)
		lo := []float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
		hi := []float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
		for i := range n {
			v := curves.At(i)
			p := [3]float32{float32(v.X * scale), float32(v.Y * scale), float32(v.Z * scale)}
			positions[i] = p
			for k := range p {
				lo[k] = min(lo[k], p[k])
				hi[k] = max(hi[k], p[k])
			}
		}
		posIdx := modeler.WriteAccessor(doc, gltf.TargetNone, positions)
		acc := doc.Accessors[posIdx]
		acc.Min = lo
		acc.Max = hi

		animation.Samplers = append(animation.Samplers, &gltf.AnimationSampler{
			Input:         timeIdx,
			Output:        posIdx,
			Interpolation: gltf.InterpolationLinear,
		})
		animation.Channels = append(animation.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(animation.Samplers) - 1)),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(jointNode(int(j.ID))),
				Path: gltf.TRSTranslation,
			},
		})
	}
	doc.Animations = append(doc.Animations, animation)
	return doc, nil
}
