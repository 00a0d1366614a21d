// Package anim converts buffered skeleton snapshots into per-joint
// translation curves expressed relative to each joint's parent.
package anim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Interpolation is the keyframe interpolation mode declared to exporters.
type Interpolation string

// InterpolationLinear declares linear interpolation between keys.
const InterpolationLinear Interpolation = "linear"

// Axis indexes the translation components of a joint.
type Axis int

// Translation axes.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists the translation axes in order.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Keyframe is one (time, value) pair on a curve.
type Keyframe struct {
	Time  float64
	Value float64
}

// Curve is a keyframe sequence for one axis of one joint.
type Curve struct {
	Keys []Keyframe
}

// Len returns the number of keys.
func (c Curve) Len() int { return len(c.Keys) }

// Eval samples the curve at time t with linear interpolation.
// Times outside the key range clamp to the first or last key.
func (c Curve) Eval(t float64) float64 {
	n := len(c.Keys)
	switch {
	case n == 0:
		return 0
	case t <= c.Keys[0].Time:
		return c.Keys[0].Value
	case t >= c.Keys[n-1].Time:
		return c.Keys[n-1].Value
	}
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if c.Keys[mid].Time <= t {
			lo = mid
		} else {
			hi = mid
		}
	}
	a, b := c.Keys[lo], c.Keys[hi]
	f := (t - a.Time) / (b.Time - a.Time)
	return a.Value + f*(b.Value-a.Value)
}

// validate checks that key times strictly increase.
func (c Curve) validate() error {
	for i := 1; i < len(c.Keys); i++ {
		if c.Keys[i].Time <= c.Keys[i-1].Time {
			return fmt.Errorf("key %d time %v does not follow %v", i, c.Keys[i].Time, c.Keys[i-1].Time)
		}
	}
	return nil
}

// JointCurves holds the X, Y and Z translation curves of one joint.
type JointCurves [3]Curve

// At returns the local translation at key index i.
func (jc *JointCurves) At(i int) r3.Vec {
	return r3.Vec{
		X: jc[AxisX].Keys[i].Value,
		Y: jc[AxisY].Keys[i].Value,
		Z: jc[AxisZ].Keys[i].Value,
	}
}

// Eval samples all three axes at time t.
func (jc *JointCurves) Eval(t float64) r3.Vec {
	return r3.Vec{X: jc[AxisX].Eval(t), Y: jc[AxisY].Eval(t), Z: jc[AxisZ].Eval(t)}
}

func (jc *JointCurves) appendKey(t float64, v r3.Vec) {
	jc[AxisX].Keys = append(jc[AxisX].Keys, Keyframe{Time: t, Value: v.X})
	jc[AxisY].Keys = append(jc[AxisY].Keys, Keyframe{Time: t, Value: v.Y})
	jc[AxisZ].Keys = append(jc[AxisZ].Keys, Keyframe{Time: t, Value: v.Z})
}
