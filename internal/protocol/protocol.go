package protocol

// Version is the protocol token exchanged during the login handshake.
// Client and server builds must agree exactly; the server is the only side
// that enforces the check.
const Version = 4

// Wire message ids. Each transport frame starts with one id byte.
const (
	MsgHandshakeQuery    byte = 0x01 // server -> client, login phase
	MsgHandshakeResponse byte = 0x02 // client -> server, login phase
	MsgOpenMapView       byte = 0x10 // client -> server, play phase, empty payload
	MsgWaypointSnapshot  byte = 0x11 // server -> client, play phase
)

// Decode caps. A corrupted count prefix must not be able to request
// unbounded allocation.
const (
	MaxStringLen   = 32767
	MaxSnapshotLen = 4096
	MaxSharedLen   = 1024
)
