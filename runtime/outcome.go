package runtime

import (
	"errors"

	"github.com/pithecene-io/skelcap/export"
	"github.com/pithecene-io/skelcap/types"
)

// Exit codes returned by the skelcap binary.
const (
	ExitCodeSuccess       = 0 // frames captured and exported
	ExitCodeCaptureError  = 1 // setup or capture failure
	ExitCodeExportError   = 2 // export back end failure
	ExitCodeInvalidOutput = 3 // invalid output path or usage
)

// classifyAcquisition maps an acquisition failure to an outcome status.
func classifyAcquisition(err error) types.OutcomeStatus {
	if IsSetupError(err) {
		return types.OutcomeSetupError
	}
	return types.OutcomeCaptureError
}

// DetermineOutcome classifies the first error of a session. A nil error
// is success.
//
// Classification:
//   - invalid output type or existing output: invalid_output
//   - acquisition before the first poll: setup_error
//   - acquisition after the first poll: capture_error
//   - export back end: export_error
func DetermineOutcome(err error) types.OutcomeStatus {
	switch {
	case err == nil:
		return types.OutcomeSuccess
	case errors.Is(err, export.ErrInvalidOutputType), errors.Is(err, export.ErrOutputExists):
		return types.OutcomeInvalidOutput
	case export.IsBackendError(err):
		return types.OutcomeExportError
	default:
		var acqErr *AcquisitionError
		if errors.As(err, &acqErr) {
			return classifyAcquisition(err)
		}
		return types.OutcomeCaptureError
	}
}
