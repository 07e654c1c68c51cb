// Socket helpers for sharing and draining UDP listen ports
package network

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// Binds a UDP socket with SO_REUSEADDR and SO_REUSEPORT so several listeners can share address:port
func ReuseUDPPort(address string, port int) (conn *net.UDPConn, err error) {
	cfg := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := cfg.ListenPacket(context.Background(), "udp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		err = fmt.Errorf("failed to listen on reused udp port: %w", err)
		return
	}
	conn = pc.(*net.UDPConn)
	return
}

// Grows the kernel receive buffer; the kernel may clamp the value to net.core.rmem_max
func SetReceiveBuffer(conn *net.UDPConn, size int) (err error) {
	if size <= 0 {
		return
	}
	err = conn.SetReadBuffer(size)
	if err != nil {
		err = fmt.Errorf("failed to set socket receive buffer to %d bytes: %w", size, err)
		return
	}
	return
}
