package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"syscall"
)

// Signals that start a graceful drain
var ExitSignals = []os.Signal{syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP}

type DaemonLike interface {
	Shutdown()
}

// Waits for an exit signal, then drains the daemon. Returns after Shutdown completes,
// or immediately when ctx is done first (daemon stopped by other means).
func SignalHandler(ctx context.Context, daemon DaemonLike) (received os.Signal) {
	sigChan := make(chan os.Signal, len(ExitSignals))
	signal.Notify(sigChan, ExitSignals...)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return
	case received = <-sigChan:
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Received signal: %v\n", received)

	err := NotifyStopping(ctx)
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Systemd notify stopping failed: %v\n", err)
	}

	daemon.Shutdown()
	return
}
