package anim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pithecene-io/skelcap/skeleton"
)

// Clip is a synthesized animation: one set of local translation curves per
// joint of Hierarchy, sampled at FrameRate.
type Clip struct {
	Name          string
	FrameRate     float64
	Interpolation Interpolation
	Convention    Convention
	Hierarchy     *skeleton.Hierarchy
	// Joints is indexed by skeleton.JointID.
	Joints []JointCurves
}

// FrameCount returns the number of keys on every curve.
func (c *Clip) FrameCount() int {
	if len(c.Joints) == 0 {
		return 0
	}
	return c.Joints[0][AxisX].Len()
}

// Duration returns the time of the last key.
func (c *Clip) Duration() float64 {
	n := c.FrameCount()
	if n == 0 {
		return 0
	}
	return c.Joints[0][AxisX].Keys[n-1].Time
}

// Times returns the shared key times.
func (c *Clip) Times() []float64 {
	n := c.FrameCount()
	out := make([]float64, n)
	for i := range n {
		out[i] = c.Joints[0][AxisX].Keys[i].Time
	}
	return out
}

// Curves returns the curves of one joint.
func (c *Clip) Curves(id skeleton.JointID) *JointCurves {
	return &c.Joints[id]
}

// LocalAt returns the local translation of a joint at key index frame.
func (c *Clip) LocalAt(id skeleton.JointID, frame int) r3.Vec {
	return c.Joints[id].At(frame)
}

// GlobalAt reconstructs a joint's position at key index frame by summing
// local translations up to the root.
func (c *Clip) GlobalAt(id skeleton.JointID, frame int) r3.Vec {
	g := c.LocalAt(id, frame)
	for p, ok := c.Hierarchy.ParentOf(id); ok; p, ok = c.Hierarchy.ParentOf(p) {
		g = r3.Add(g, c.LocalAt(p, frame))
	}
	return g
}

// Pose reconstructs every joint position at key index frame.
func (c *Clip) Pose(frame int) []r3.Vec {
	out := make([]r3.Vec, len(c.Joints))
	for _, j := range c.Hierarchy.Joints() {
		local := c.LocalAt(j.ID, frame)
		if j.IsRoot() {
			out[j.ID] = local
			continue
		}
		out[j.ID] = r3.Add(local, out[j.Parent])
	}
	return out
}

// WithConvention returns a copy of the clip expressed in conv.
// The receiver is not modified.
func (c *Clip) WithConvention(conv Convention) *Clip {
	out := *c
	out.Convention = conv
	out.Joints = make([]JointCurves, len(c.Joints))
	flip := c.Convention.FlipY != conv.FlipY
	for i := range c.Joints {
		for _, a := range Axes {
			keys := append([]Keyframe(nil), c.Joints[i][a].Keys...)
			if flip && a == AxisY {
				for k := range keys {
					keys[k].Value = -keys[k].Value
				}
			}
			out.Joints[i][a] = Curve{Keys: keys}
		}
	}
	return &out
}

// Validate checks that every curve has the same key count and strictly
// increasing key times.
func (c *Clip) Validate() error {
	if c.Hierarchy == nil {
		return fmt.Errorf("clip %q has no hierarchy", c.Name)
	}
	if len(c.Joints) != c.Hierarchy.JointCount() {
		return fmt.Errorf("clip %q has %d joints, hierarchy has %d",
			c.Name, len(c.Joints), c.Hierarchy.JointCount())
	}
	n := c.FrameCount()
	for i := range c.Joints {
		for _, a := range Axes {
			curve := c.Joints[i][a]
			if curve.Len() != n {
				return fmt.Errorf("joint %d axis %s has %d keys, want %d", i, a, curve.Len(), n)
			}
			if err := curve.validate(); err != nil {
				return fmt.Errorf("joint %d axis %s: %w", i, a, err)
			}
		}
	}
	return nil
}
