// Package udpsock is the production cciefb.Platform backed by Linux UDP
// sockets, grounded on the teacher's pkg/can/socketcanv2 (a raw-socket
// transport built directly on golang.org/x/sys/unix rather than net.Conn,
// needed here too since the core requires nonblocking sends/receives and
// PKTINFO ancillary data that the net package does not expose).
package udpsock

import (
	"encoding/binary"

	"github.com/cciefb-go/cciefb"
	"github.com/cciefb-go/cciefb/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Platform is the production cciefb.Platform: real sockets, real clocks,
// file-backed persisted storage.
type Platform struct {
	store *storage.FileStore
	log   *logrus.Entry
}

var _ cciefb.Platform = (*Platform)(nil)

// New constructs a Platform. There is no open state to hold beyond the
// storage backend: sockets and interface lookups are stateless OS calls.
func New() *Platform {
	return &Platform{
		store: storage.NewFileStore(),
		log:   logrus.WithField("service", "[UDPSOCK]"),
	}
}

// OpenUDP opens a nonblocking UDP socket bound to ip:port. When broadcast
// is true SO_BROADCAST is set so the caller may SendTo 0xFFFFFFFF or a
// subnet-directed broadcast address. IP_PKTINFO is always enabled so
// RecvFromIndexed can report the local address/interface a datagram
// arrived on (needed on the SLMP socket, spec §6).
func (p *Platform) OpenUDP(ip uint32, port uint16, broadcast bool) (cciefb.UDPSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if broadcast {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_PKTINFO, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	binary.BigEndian.PutUint32(addr.Addr[:], ip)
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &Socket{fd: fd, log: p.log}, nil
}

// NowMonotonicUs implements cciefb.Platform: a 32-bit microsecond
// monotonic counter, truncated from CLOCK_MONOTONIC and expected to wrap
// every ~71 minutes (spec §5).
func (p *Platform) NowMonotonicUs() uint32 {
	var ts unix.Timespec
	unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	return uint32(ts.Sec*1_000_000 + ts.Nsec/1_000)
}

// NowUnixMs implements cciefb.Platform.
func (p *Platform) NowUnixMs() uint64 {
	var ts unix.Timespec
	unix.ClockGettime(unix.CLOCK_REALTIME, &ts)
	return uint64(ts.Sec)*1000 + uint64(ts.Nsec)/1_000_000
}

// Storage implements cciefb.Platform.
func (p *Platform) Storage() cciefb.Storage { return p.store }
