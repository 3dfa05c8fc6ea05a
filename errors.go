package cciefb

import "errors"

// Sentinel errors returned by the core. Transient wire faults (malformed
// frames, wrong reserved fields, wrong serials) are never surfaced through
// these: per spec they are dropped silently on the wire. These sentinels
// cover configuration, lifecycle and programming-contract failures.
var (
	ErrIllegalArgument  = errors.New("cciefb: illegal argument")
	ErrInvalidConfig    = errors.New("cciefb: invalid configuration")
	ErrGroupOutOfRange  = errors.New("cciefb: group index out of range")
	ErrDeviceOutOfRange = errors.New("cciefb: device index out of range")
	ErrSLMPPending      = errors.New("cciefb: an SLMP transaction of this kind is already pending")
	ErrNoPlatform       = errors.New("cciefb: no platform supplied")
	ErrShortWrite       = errors.New("cciefb: short write on UDP send")
	ErrBufferTooSmall   = errors.New("cciefb: output buffer too small")
	ErrEmptyFilename    = errors.New("cciefb: filename must not be empty")
	ErrBadMagic         = errors.New("cciefb: persisted file has wrong magic")
	ErrBadFileVersion   = errors.New("cciefb: persisted file has unsupported version")
	ErrFileTooShort     = errors.New("cciefb: persisted file is shorter than expected")
)
