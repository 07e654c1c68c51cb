package network

import "golang.org/x/sys/unix"

// SIOCINQ, the Linux name for FIONREAD on sockets
const pendingBytesRequest = unix.TIOCINQ
