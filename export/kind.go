// Package export routes a captured skeleton buffer to the keyframe
// animation back end selected by the output file extension.
package export

import (
	"errors"
	"path/filepath"
	"strings"
)

// Kind identifies an export back end.
type Kind string

const (
	// KindFBX selects the FBX back end.
	KindFBX Kind = "fbx"
	// KindGLTF selects the glTF back end (.gltf or .glb).
	KindGLTF Kind = "gltf"
)

// ErrInvalidOutputType is returned for an output path whose extension
// selects no back end.
var ErrInvalidOutputType = errors.New("Invalid output type. Use either .fbx or .gltf/.glb.") //nolint:staticcheck // user-facing message

// KindOf derives the back end kind from the output path extension.
func KindOf(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fbx":
		return KindFBX, nil
	case ".gltf", ".glb":
		return KindGLTF, nil
	default:
		return "", ErrInvalidOutputType
	}
}

// IsBinaryGLTF reports whether path names a binary glTF container.
func IsBinaryGLTF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".glb")
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
