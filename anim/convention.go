package anim

// Convention is the axis convention of an export target.
// Synthesis produces values in the captured convention; exporters
// convert with Clip.WithConvention.
type Convention struct {
	Name  string
	FlipY bool
}

var (
	// ConventionCaptured keeps the depth camera's axes.
	ConventionCaptured = Convention{Name: "captured"}
	// ConventionFlipY negates the vertical axis.
	ConventionFlipY = Convention{Name: "flip_y", FlipY: true}
)
