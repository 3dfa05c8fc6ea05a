package udpsock

import "golang.org/x/sys/unix"

// sockGetsockname reports the ephemeral port a socket was bound to,
// test-only plumbing since ports assigned by OpenUDP(.., 0, ..) are
// chosen by the kernel.
func sockGetsockname(fd int) (uint16, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, unix.EINVAL
	}
	return uint16(sa4.Port), nil
}
