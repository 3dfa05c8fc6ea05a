package udpsock

import (
	"encoding/binary"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Socket is a nonblocking UDP socket, the real-world cciefb.UDPSocket.
// Grounded on pkg/can/socketcanv2's raw fd + unix.Recvmsg style rather
// than net.UDPConn, since RecvFromIndexed needs IP_PKTINFO ancillary data
// that net.UDPConn has no way to surface.
type Socket struct {
	fd  int
	log *logrus.Entry
}

// SendTo implements cciefb.UDPSocket.
func (s *Socket) SendTo(dstIP uint32, dstPort uint16, data []byte) (int, error) {
	addr := &unix.SockaddrInet4{Port: int(dstPort)}
	binary.BigEndian.PutUint32(addr.Addr[:], dstIP)
	if err := unix.Sendto(s.fd, data, 0, addr); err != nil {
		return 0, err
	}
	return len(data), nil
}

// RecvFrom implements cciefb.UDPSocket. A nonblocking socket with nothing
// queued returns EAGAIN, surfaced here as ok=false, err=nil — matching the
// "no data this tick, keep polling" contract the core's Tick loop expects.
func (s *Socket) RecvFrom(buf []byte) (n int, srcIP uint32, srcPort uint16, ok bool, err error) {
	nRead, from, recvErr := unix.Recvfrom(s.fd, buf, 0)
	if recvErr != nil {
		if recvErr == unix.EAGAIN || recvErr == unix.EWOULDBLOCK {
			return 0, 0, 0, false, nil
		}
		return 0, 0, 0, false, recvErr
	}
	sa4, isV4 := from.(*unix.SockaddrInet4)
	if !isV4 {
		return 0, 0, 0, false, nil
	}
	return nRead, binary.BigEndian.Uint32(sa4.Addr[:]), uint16(sa4.Port), true, nil
}

// RecvFromIndexed implements cciefb.UDPSocket using unix.Recvmsg with an
// IP_PKTINFO control-message buffer, recovering the local destination
// address and interface index a datagram arrived through — information
// RecvFrom cannot give on a socket bound to INADDR_ANY.
func (s *Socket) RecvFromIndexed(buf []byte) (n int, srcIP uint32, srcPort uint16, localIP uint32, ifindex int, ok bool, err error) {
	oob := make([]byte, unix.CmsgSpace(unix.SizeofInet4Pktinfo))
	nRead, oobn, _, from, recvErr := unix.Recvmsg(s.fd, buf, oob, 0)
	if recvErr != nil {
		if recvErr == unix.EAGAIN || recvErr == unix.EWOULDBLOCK {
			return 0, 0, 0, 0, 0, false, nil
		}
		return 0, 0, 0, 0, 0, false, recvErr
	}
	sa4, isV4 := from.(*unix.SockaddrInet4)
	if !isV4 {
		return 0, 0, 0, 0, 0, false, nil
	}
	srcIP = binary.BigEndian.Uint32(sa4.Addr[:])
	srcPort = uint16(sa4.Port)

	cmsgs, parseErr := unix.ParseSocketControlMessage(oob[:oobn])
	if parseErr == nil {
		for _, cmsg := range cmsgs {
			if cmsg.Header.Level != unix.IPPROTO_IP || cmsg.Header.Type != unix.IP_PKTINFO {
				continue
			}
			pktinfo := (*unix.Inet4Pktinfo)(unsafe.Pointer(&cmsg.Data[0]))
			localIP = binary.BigEndian.Uint32(pktinfo.Spec_dst[:])
			ifindex = int(pktinfo.Ifindex)
		}
	} else {
		s.log.WithError(parseErr).Debug("failed to parse IP_PKTINFO ancillary data")
	}

	return nRead, srcIP, srcPort, localIP, ifindex, true, nil
}

// Close implements cciefb.UDPSocket.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}
