// Optional kernel assistance for draining SO_REUSEPORT listeners.
// The selector program and its map are provisioned outside the daemon; every call is a no-op when they are absent.
package ebpf

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"
)

// Retrieve unique identifier (cookie) for a socket
func GetSocketCookie(conn *net.UDPConn) (cookie uint64, err error) {
	if runtime.GOOS != "linux" {
		return
	}

	rawConn, err := conn.SyscallConn()
	if err != nil {
		err = fmt.Errorf("failed to get raw socket: %w", err)
		return
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		cookie, sockErr = unix.GetsockoptUint64(int(fd), unix.SOL_SOCKET, unix.SO_COOKIE)
	})
	if err == nil {
		err = sockErr
	}
	if err != nil {
		err = fmt.Errorf("getsockopt SO_COOKIE failed: %w", err)
		return
	}
	return
}

// Attaches the pinned reuseport selector program to the socket group of conn.
// attached is false when no program is pinned at pinnedProgPath.
func AttachReuseportSelector(conn *net.UDPConn, pinnedProgPath string) (attached bool, err error) {
	if runtime.GOOS != "linux" || !pinned(pinnedProgPath) {
		return
	}

	prog, err := ebpf.LoadPinnedProgram(pinnedProgPath, nil)
	if err != nil {
		err = fmt.Errorf("failed to load pinned program: %w", err)
		return
	}
	defer prog.Close()

	rawConn, err := conn.SyscallConn()
	if err != nil {
		err = fmt.Errorf("failed to get raw socket: %w", err)
		return
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ATTACH_REUSEPORT_EBPF, prog.FD())
	})
	if err == nil {
		err = sockErr
	}
	if err != nil {
		err = fmt.Errorf("failed to attach reuseport program: %w", err)
		return
	}
	attached = true
	return
}

// Mark a socket (by cookie) as draining so the kernel stops steering new datagrams to it
func MarkSocketDraining(pinnedMapPath string, socketCookie uint64) (err error) {
	if runtime.GOOS != "linux" {
		return
	}
	if pinnedMapPath == "" {
		err = fmt.Errorf("map path empty")
		return
	}
	if !pinned(pinnedMapPath) {
		return
	}

	socketMap, err := ebpf.LoadPinnedMap(pinnedMapPath, nil)
	if err != nil {
		err = fmt.Errorf("failed to load eBPF map: %w", err)
		return
	}
	defer socketMap.Close()

	err = socketMap.Put(socketCookie, drainingMark)
	if err != nil {
		err = fmt.Errorf("failed to mark socket draining: %w", err)
		return
	}
	return
}

// Removes the draining mark once the socket is closed
func ClearSocketDraining(pinnedMapPath string, socketCookie uint64) (err error) {
	if runtime.GOOS != "linux" || !pinned(pinnedMapPath) {
		return
	}

	socketMap, err := ebpf.LoadPinnedMap(pinnedMapPath, nil)
	if err != nil {
		err = fmt.Errorf("failed to load eBPF map: %w", err)
		return
	}
	defer socketMap.Close()

	err = socketMap.Delete(socketCookie)
	if err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
		err = fmt.Errorf("failed to clear socket draining mark: %w", err)
		return
	}
	err = nil
	return
}

// Missing or unreadable pins disable the feature
func pinned(path string) (present bool) {
	if path == "" {
		return
	}
	_, err := os.Stat(path)
	present = err == nil
	return
}
