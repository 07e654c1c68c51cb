package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Bytes waiting in the socket receive queue (SIOCINQ/FIONREAD)
func PendingBytes(conn *net.UDPConn) (pending int, err error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		err = fmt.Errorf("failed to get raw socket: %w", err)
		return
	}

	var ioctlErr error
	err = rawConn.Control(func(fd uintptr) {
		pending, ioctlErr = unix.IoctlGetInt(int(fd), pendingBytesRequest)
	})
	if err != nil {
		err = fmt.Errorf("failed to access socket: %w", err)
		return
	}
	if ioctlErr != nil {
		err = fmt.Errorf("receive queue ioctl failed: %w", ioctlErr)
		return
	}
	return
}

// Polls the receive queue until it is empty, timeout elapses or ctx is done.
// The socket must still be read by someone for the queue to empty.
func WaitUntilEmptySocket(ctx context.Context, conn *net.UDPConn, timeout, pollInterval time.Duration) (remaining int, err error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining, err = PendingBytes(conn)
		if err != nil || remaining == 0 {
			return
		}
		if time.Now().After(deadline) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}
