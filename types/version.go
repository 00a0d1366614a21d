package types

// Version is the canonical project version.
// The CLI and the tracker bridge contract share this version.
const Version = "0.3.0"

// BridgeContractVersion is the tracker bridge wire contract version.
// A bridge reporting a different major version is rejected at session open.
const BridgeContractVersion = "0.3.0"
