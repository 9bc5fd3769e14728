//go:build linux

package tcpserver

import (
	"net"

	"golang.org/x/sys/unix"
)

// extractRawFd duplicates conn's underlying file descriptor and switches
// it to nonblocking mode, since ownership of the descriptor is moving
// from net.TCPConn to the reactor: once handed to IoEventLoopService, the
// net.Conn wrapper is discarded and the raw fd is driven only through
// epoll from here on.
func extractRawFd(conn *net.TCPConn) (int, error) {
	sc, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}

	var dup int
	var dupErr, ctrlErr error
	ctrlErr = sc.Control(func(fd uintptr) {
		dup, dupErr = unix.Dup(int(fd))
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	if dupErr != nil {
		return 0, dupErr
	}

	if err := unix.SetNonblock(dup, true); err != nil {
		unix.Close(dup)
		return 0, err
	}

	// The duplicated fd now owns the socket independently; closing conn
	// no longer affects it.
	_ = conn.Close()
	return dup, nil
}
