package types

// Frame type discriminants for the tracker bridge stream.
const (
	// FrameTypeSession reports device discovery, calibration, and tracker setup.
	FrameTypeSession = "session"
	// FrameTypeCapture carries one polled capture and its tracked bodies.
	FrameTypeCapture = "capture"
	// FrameTypeEOS marks the end of a recording.
	FrameTypeEOS = "eos"
	// FrameTypeError reports a bridge-side failure at a named stage.
	FrameTypeError = "error"
)

// BridgeStage names the bridge-side stage a session or error frame refers to.
type BridgeStage string

// Bridge stage constants.
const (
	BridgeStageDevice      BridgeStage = "device"
	BridgeStageCameras     BridgeStage = "cameras"
	BridgeStageCalibration BridgeStage = "calibration"
	BridgeStageTracker     BridgeStage = "tracker"
	BridgeStageCapture     BridgeStage = "capture"
	BridgeStageEnqueue     BridgeStage = "enqueue"
	BridgeStagePop         BridgeStage = "pop"
)

// DeviceConfig is the camera configuration requested from the bridge.
type DeviceConfig struct {
	FPS             int    `json:"fps"`
	DepthMode       string `json:"depth_mode"`
	ColorResolution string `json:"color_resolution"`
	ColorFormat     string `json:"color_format"`
}

// DefaultDeviceConfig returns the capture configuration used for live sessions.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		FPS:             30,
		DepthMode:       "NFOV_UNBINNED",
		ColorResolution: "720P",
		ColorFormat:     "MJPG",
	}
}

// BridgeRequest is the JSON document written to the bridge's stdin.
type BridgeRequest struct {
	ContractVersion string       `json:"contract_version"`
	SessionID       string       `json:"session_id"`
	Mode            SessionMode  `json:"mode"`
	InputPath       string       `json:"input_path,omitempty"`
	Device          DeviceConfig `json:"device"`
}

// SessionFrame is emitted once after the bridge has opened its source.
type SessionFrame struct {
	Type            string `msgpack:"type"`
	ContractVersion string `msgpack:"contract_version"`
	// DeviceCount is the number of attached devices (live mode only).
	DeviceCount int `msgpack:"device_count"`
	// Opened is true once the device or recording is open.
	Opened bool `msgpack:"opened"`
	// Calibrated is true once depth calibration was read.
	Calibrated bool `msgpack:"calibrated"`
	// TrackerReady is true once the body tracker was created.
	TrackerReady bool `msgpack:"tracker_ready"`
	// CamerasStarted is true once the cameras are streaming (live mode only).
	CamerasStarted bool    `msgpack:"cameras_started"`
	Message        *string `msgpack:"message,omitempty"`
}

// CaptureFrame carries one capture. Bodies is already the tracker's
// output for this capture; it is empty when no body was detected.
type CaptureFrame struct {
	Type string `msgpack:"type"`
	Seq  int64  `msgpack:"seq"`
	// DeviceTimestampUsec is the depth image timestamp in microseconds.
	DeviceTimestampUsec int64 `msgpack:"device_timestamp_usec"`
	// HasDepth is false for captures without a depth image.
	HasDepth bool               `msgpack:"has_depth"`
	Bodies   []SkeletonSnapshot `msgpack:"bodies"`
}

// EOSFrame marks the end of a recording.
type EOSFrame struct {
	Type string `msgpack:"type"`
}

// ErrorFrame reports a failure inside the bridge.
type ErrorFrame struct {
	Type    string      `msgpack:"type"`
	Stage   BridgeStage `msgpack:"stage"`
	Message string      `msgpack:"message"`
}
