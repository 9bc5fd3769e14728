//go:build !linux

package tcpserver

import (
	"errors"
	"net"
)

func extractRawFd(conn *net.TCPConn) (int, error) {
	_ = conn.Close()
	return 0, errors.New("tcpserver: raw fd extraction is only supported on linux")
}
