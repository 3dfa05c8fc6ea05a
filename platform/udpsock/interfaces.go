package udpsock

import (
	"encoding/binary"
	"net"
	"unsafe"

	"github.com/cciefb-go/cciefb"
	"golang.org/x/sys/unix"
)

// InterfaceIndexForIP implements cciefb.Platform using net.Interfaces, the
// same lookup the teacher's NewBus performs with net.InterfaceByName
// before opening a raw socket on it.
func (p *Platform) InterfaceIndexForIP(ip uint32) (int, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return 0, err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipnet.IP.To4()
			if v4 == nil {
				continue
			}
			if binary.BigEndian.Uint32(v4) == ip {
				return iface.Index, nil
			}
		}
	}
	return 0, cciefb.ErrIllegalArgument
}

// InterfaceName implements cciefb.Platform.
func (p *Platform) InterfaceName(ifindex int) (string, error) {
	iface, err := net.InterfaceByIndex(ifindex)
	if err != nil {
		return "", cciefb.ErrIllegalArgument
	}
	return iface.Name, nil
}

// InterfaceMAC implements cciefb.Platform.
func (p *Platform) InterfaceMAC(ifindex int) (cciefb.MACAddress, error) {
	iface, err := net.InterfaceByIndex(ifindex)
	if err != nil || len(iface.HardwareAddr) != 6 {
		return cciefb.MACAddress{}, cciefb.ErrIllegalArgument
	}
	var mac cciefb.MACAddress
	copy(mac[:], iface.HardwareAddr)
	return mac, nil
}

// InterfaceNetmask implements cciefb.Platform.
func (p *Platform) InterfaceNetmask(ifindex int) (uint32, error) {
	iface, err := net.InterfaceByIndex(ifindex)
	if err != nil {
		return 0, cciefb.ErrIllegalArgument
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return 0, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.To4() == nil {
			continue
		}
		return binary.BigEndian.Uint32(ipnet.Mask), nil
	}
	return 0, cciefb.ErrIllegalArgument
}

// ifreq mirrors Linux's struct ifreq for the address-family-inet union
// member, manually laid out since no x/sys helper wraps SIOCSIFADDR.
// Grounded on the teacher's CANframe: a fixed-size byte layout cast via
// unsafe.Pointer rather than parsed field by field.
type ifreq struct {
	name [unix.IFNAMSIZ]byte
	addr unix.RawSockaddrInet4
	pad  [8]byte // struct ifreq is 40 bytes; pad out the union
}

func ioctlSetAddr(fd int, req uint, name string, ip uint32) error {
	var r ifreq
	copy(r.name[:], name)
	r.addr.Family = unix.AF_INET
	binary.BigEndian.PutUint32(r.addr.Addr[:], ip)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&r)))
	if errno != 0 {
		return errno
	}
	return nil
}

// SetInterfaceAddress implements cciefb.Platform: applies an address/
// netmask change via SIOCSIFADDR/SIOCSIFNETMASK ioctls on a throwaway
// control socket, the standard Linux way to reconfigure an interface
// outside of the `ip` command — needed for the SLMP Set-IP command (spec
// §4.5) to actually take effect on the host.
func (p *Platform) SetInterfaceAddress(ifindex int, ip uint32, netmask uint32) error {
	iface, err := net.InterfaceByIndex(ifindex)
	if err != nil {
		return cciefb.ErrIllegalArgument
	}

	ctrlFD, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(ctrlFD)

	if err := ioctlSetAddr(ctrlFD, unix.SIOCSIFADDR, iface.Name, ip); err != nil {
		return err
	}
	return ioctlSetAddr(ctrlFD, unix.SIOCSIFNETMASK, iface.Name, netmask)
}
