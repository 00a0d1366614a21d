package anim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pithecene-io/skelcap/skeleton"
	"github.com/pithecene-io/skelcap/types"
)

// Options configures Synthesize.
type Options struct {
	// Name is the clip name, usually the output file stem.
	Name string
	// FrameRate is the sampling rate. Zero means types.NominalFrameRate.
	FrameRate float64
}

// Synthesize builds a clip from buf. Key j of every curve sits at time
// j / FrameRate. The root joint keeps its captured position; every other
// joint stores its captured position minus its parent's global position,
// where the parent's global position is evaluated from the curves already
// synthesized for it. Joints are visited in canonical order so a parent's
// curves always exist before its children's.
//
// The result is in ConventionCaptured. An empty buffer gives a clip with
// empty curves.
func Synthesize(buf *skeleton.Buffer, h *skeleton.Hierarchy, opts Options) (*Clip, error) {
	if h == nil {
		h = skeleton.Default()
	}
	if h.JointCount() != types.JointCount {
		return nil, fmt.Errorf("hierarchy has %d joints, snapshots have %d", h.JointCount(), types.JointCount)
	}
	rate := opts.FrameRate
	if rate == 0 {
		rate = types.NominalFrameRate
	}
	if rate < 0 {
		return nil, fmt.Errorf("invalid frame rate %v", rate)
	}

	snapshots := buf.Snapshots()
	n := len(snapshots)
	clip := &Clip{
		Name:          opts.Name,
		FrameRate:     rate,
		Interpolation: InterpolationLinear,
		Convention:    ConventionCaptured,
		Hierarchy:     h,
		Joints:        make([]JointCurves, h.JointCount()),
	}
	for i := range clip.Joints {
		for _, a := range Axes {
			clip.Joints[i][a].Keys = make([]Keyframe, 0, n)
		}
	}

	for _, joint := range h.Joints() {
		curves := &clip.Joints[joint.ID]
		for j, snap := range snapshots {
			raw := sampleVec(snap.Joints[joint.ID])
			local := raw
			if !joint.IsRoot() {
				local = r3.Sub(raw, clip.GlobalAt(joint.Parent, j))
			}
			curves.appendKey(skeleton.TimeAt(j, rate), local)
		}
	}
	return clip, nil
}

func sampleVec(s types.JointSample) r3.Vec {
	return r3.Vec{X: float64(s.X), Y: float64(s.Y), Z: float64(s.Z)}
}
