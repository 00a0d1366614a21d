package tracking

import (
	"math"
	"strings"

	"github.com/pithecene-io/skelcap/skeleton"
	"github.com/pithecene-io/skelcap/types"
)

// boneLength is the synthetic bone length in millimetres.
const boneLength = 120

// SyntheticPose returns a plausible standing pose at time t seconds, with
// the body swaying sideways and the arms swinging. Coordinates follow the
// tracker's camera space in millimetres.
func SyntheticPose(t float64) types.SkeletonSnapshot {
	h := skeleton.Default()
	var s types.SkeletonSnapshot
	sway := 80 * math.Sin(2*math.Pi*t/2)
	swing := 60 * math.Sin(2*math.Pi*t)

	for _, j := range h.Joints() {
		if j.IsRoot() {
			s.Joints[j.ID] = types.JointSample{X: float32(sway), Y: 0, Z: 2000}
			continue
		}
		parent := s.Joints[j.Parent]
		dx, dy := boneDirection(j)
		switch {
		case strings.HasSuffix(j.Name, "_Left"):
			dy += swing / boneLength
		case strings.HasSuffix(j.Name, "_Right"):
			dx, dy = -dx, dy-swing/boneLength
		}
		s.Joints[j.ID] = types.JointSample{
			X: parent.X + float32(dx*boneLength),
			Y: parent.Y + float32(dy*boneLength),
			Z: parent.Z,
		}
	}
	return s
}

// boneDirection returns a unit-ish direction for the bone ending at j.
// Legs point down, arms point outward, everything else points up.
func boneDirection(j skeleton.Joint) (dx, dy float64) {
	switch {
	case strings.HasPrefix(j.Name, "Hip"), strings.HasPrefix(j.Name, "Clavicle"),
		strings.HasPrefix(j.Name, "Shoulder"):
		return 1, 0
	case strings.HasPrefix(j.Name, "Knee"), strings.HasPrefix(j.Name, "Ankle"):
		return 0, -2
	case strings.HasPrefix(j.Name, "Foot"):
		return 0, -0.5
	case strings.HasPrefix(j.Name, "Elbow"), strings.HasPrefix(j.Name, "Wrist"):
		return 1.5, 0
	case strings.HasPrefix(j.Name, "Hand"), strings.HasPrefix(j.Name, "Thumb"):
		return 0.5, 0
	default:
		return 0, 1
	}
}

// SyntheticFrames returns n single-body frames sampled at the nominal
// frame rate. Used for dry runs without a device.
func SyntheticFrames(n int) []StubFrame {
	frames := make([]StubFrame, n)
	for i := range frames {
		pose := SyntheticPose(float64(i) / types.NominalFrameRate)
		frames[i] = StubFrame{Bodies: []types.SkeletonSnapshot{pose}}
	}
	return frames
}
