//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package network

import "golang.org/x/sys/unix"

const pendingBytesRequest = unix.FIONREAD
