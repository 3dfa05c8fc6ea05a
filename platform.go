package cciefb

import "net"

// Platform is the set of external collaborators the core consumes, per the
// spec's external-interfaces section. It plays the role the teacher's Bus
// interface plays for the CAN transport: the core never talks to an OS
// socket, a clock, or a filesystem directly, it only talks to a Platform.
//
// Implementations must be safe to use from the single goroutine that drives
// Tick; the core itself is not safe for concurrent use.
type Platform interface {
	// UDP transport. Sends are one-shot; a short write is reported as
	// ErrShortWrite by the implementation, never retried internally.
	OpenUDP(ip uint32, port uint16, broadcast bool) (UDPSocket, error)

	// Interface enumeration, used by the slave's Set-IP path and by the
	// master to compute its broadcast address.
	InterfaceIndexForIP(ip uint32) (int, error)
	InterfaceName(ifindex int) (string, error)
	InterfaceMAC(ifindex int) (MACAddress, error)
	InterfaceNetmask(ifindex int) (uint32, error)
	SetInterfaceAddress(ifindex int, ip uint32, netmask uint32) error

	// Clocks.
	NowMonotonicUs() uint32
	NowUnixMs() uint64

	// Persistent storage, used for the master's parameter_no.
	Storage() Storage
}

// UDPSocket is a single, already-bound, nonblocking UDP endpoint.
type UDPSocket interface {
	SendTo(ip uint32, port uint16, data []byte) (int, error)
	// RecvFrom drains one pending datagram. ok is false if nothing is
	// pending (the nonblocking WOULDBLOCK case); it is never an error.
	RecvFrom(buf []byte) (n int, srcIP uint32, srcPort uint16, ok bool, err error)
	// RecvFromIndexed is RecvFrom plus the local address/interface the
	// datagram arrived on, required on the SLMP socket to discriminate
	// responses arriving on the wrong interface.
	RecvFromIndexed(buf []byte) (n int, srcIP uint32, srcPort uint16, localIP uint32, ifindex int, ok bool, err error)
	Close() error
}

// MACAddress is a 6-byte hardware address.
type MACAddress [6]byte

func (m MACAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}

// Storage is the persisted key-value file abstraction from spec §6, used
// for the master's generation counter (parameter_no).
type Storage interface {
	// Save writes obj1 (and optionally obj2) if different from what is
	// already on disk under path. Returns the same tri-state spec'd in §6.
	SaveIfModified(path string, obj1 []byte, obj2 []byte) (SaveResult, error)
	// Load reads obj1 (and optionally obj2) back; it leaves the outputs
	// untouched on any validation failure (bad magic/version/short file).
	Load(path string, obj1Len int, obj2Len int) (obj1 []byte, obj2 []byte, err error)
	Clear(path string) error
}

// SaveResult is the tri-state returned by a "save if modified" write.
type SaveResult int

const (
	SaveNoChange SaveResult = iota
	SaveUpdated
	SaveCreated
)
