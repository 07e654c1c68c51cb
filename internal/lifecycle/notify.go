// Process lifecycle plumbing shared by daemon commands: exit signals and systemd notifications
package lifecycle

import (
	"context"
	"fmt"
	"net"
	"os"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
)

// Sends READY=1 to systemd to indicate service startup complete.
func NotifyReady(ctx context.Context) (err error) {
	err = notify(ctx, notifyReady)
	return
}

// Sends STOPPING=1 to systemd when draining starts.
func NotifyStopping(ctx context.Context) (err error) {
	err = notify(ctx, notifyStopping)
	return
}

// Sends custom status message to systemd for context.
func NotifyStatus(ctx context.Context, msg string) (err error) {
	err = notify(ctx, "STATUS="+msg)
	return
}

// Sends a raw sd_notify message.
// If NOTIFY_SOCKET is unset, this is a no-op and returns nil.
func notify(ctx context.Context, msg string) (err error) {
	sockPath := os.Getenv(EnvNameNotifySocket)
	if sockPath == "" {
		return
	}

	// Abstract namespace sockets are given with a leading '@'
	if sockPath[0] == '@' {
		sockPath = "\x00" + sockPath[1:]
	}

	addr := &net.UnixAddr{
		Name: sockPath,
		Net:  "unixgram",
	}

	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		err = fmt.Errorf("notify dial failed: %w", err)
		return
	}
	defer conn.Close()

	_, err = conn.Write([]byte(msg))
	if err != nil {
		err = fmt.Errorf("notify write failed: %w", err)
		return
	}

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "Notified systemd with message '%s'\n", msg)
	return
}
