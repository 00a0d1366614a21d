package export

import (
	"errors"
	"fmt"
)

// ErrOutputExists is returned when the output file is already present.
var ErrOutputExists = errors.New("Output file already exists, please choose another name.") //nolint:staticcheck // user-facing message

// BackendError wraps a failure inside an export back end.
// Its message names the back end so the report reads
// "An error occurred while creating the fbx." or "...the gltf.".
type BackendError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("An error occurred while creating the %s.", e.Kind)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Detail returns the message with the underlying cause.
func (e *BackendError) Detail() string {
	if e.Err == nil {
		return e.Error()
	}
	return fmt.Sprintf("%s (%s: %v)", e.Error(), e.Path, e.Err)
}

// IsBackendError reports whether err came from an export back end.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
