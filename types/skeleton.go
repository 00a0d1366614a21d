// Package types defines core domain types for skelcap.
//
//nolint:revive // types is a common Go package naming convention
package types

// JointCount is the number of joints in a tracked skeleton.
const JointCount = 27

// NominalFrameRate is the capture rate in frames per second.
// Buffer index i maps to animation time i / NominalFrameRate.
const NominalFrameRate = 30.0

// JointSample is one joint position in millimetres, in the depth camera frame.
type JointSample struct {
	X float32 `msgpack:"x" json:"x"`
	Y float32 `msgpack:"y" json:"y"`
	Z float32 `msgpack:"z" json:"z"`
}

// SkeletonSnapshot holds every joint position of one body for one frame.
// Joint order matches the tracker's joint enumeration.
type SkeletonSnapshot struct {
	Joints [JointCount]JointSample `msgpack:"joints" json:"joints"`
}

// Joint returns the sample for joint index i.
func (s *SkeletonSnapshot) Joint(i int) JointSample {
	return s.Joints[i]
}
