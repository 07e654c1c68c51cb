package in

import (
	"context"
	"fmt"
	"net"
	"segmentd/internal/collector/listener"
	"segmentd/internal/ebpf"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/network"
	"strconv"
)

// Create additional listener instance bound to the shared address
func (manager *InstanceManager) AddInstance() (id int, err error) {
	manager.Mu.Lock()
	defer manager.Mu.Unlock()

	conn, err := network.ReuseUDPPort(manager.address, manager.port)
	if err != nil {
		err = fmt.Errorf("failed to bind listener: %w", err)
		return
	}
	if manager.port == 0 {
		manager.port = conn.LocalAddr().(*net.UDPAddr).Port
	}

	id = manager.nextID
	manager.nextID++

	// Add log context
	manager.ctx = logctx.AppendCtxTag(manager.ctx, strconv.Itoa(id))
	defer func() { manager.ctx = logctx.RemoveLastCtxTag(manager.ctx) }()

	bufErr := network.SetReceiveBuffer(conn, manager.cfg.ReceiveBufferBytes)
	if bufErr != nil {
		logctx.LogEvent(manager.ctx, global.VerbosityStandard, global.WarnLog,
			"Listener %d: %v\n", id, bufErr)
	}

	attached, err := ebpf.AttachReuseportSelector(conn, ebpf.SelectorProgPin)
	if err != nil {
		logctx.LogEvent(manager.ctx, global.VerbosityStandard, global.WarnLog,
			"Listener %d: reuseport selector not attached: %v\n", id, err)
		err = nil
	} else if attached {
		logctx.LogEvent(manager.ctx, global.VerbosityProgress, global.InfoLog,
			"Listener %d: attached reuseport selector\n", id)
	}

	cookie, cookieErr := ebpf.GetSocketCookie(conn)
	if cookieErr != nil {
		logctx.LogEvent(manager.ctx, global.VerbosityProgress, global.WarnLog,
			"Listener %d: failed to get cookie for socket: %v\n", id, cookieErr)
	}

	ingestInstance := &Instance{
		conn:     conn,
		cookie:   cookie,
		Listener: listener.New(logctx.GetTagList(manager.ctx), conn, manager.outbox, manager.cfg, manager.sink),
	}

	manager.Instances[id] = ingestInstance

	// Create new context for the listener
	ingestCtx, cancelInstances := context.WithCancel(context.Background())
	ingestInstance.cancel = cancelInstances
	ingestCtx = context.WithValue(ingestCtx, global.LoggerKey, logctx.GetLogger(manager.ctx))

	ingestInstance.wg.Add(1)
	go func() {
		defer ingestInstance.wg.Done()
		ingestCtx := logctx.OverwriteCtxTag(ingestCtx, ingestInstance.Listener.Namespace)
		ingestInstance.Listener.Run(ingestCtx)
	}()
	return
}

// Drains and removes an existing instance. The listener keeps reading while the
// kernel queue empties so datagrams already accepted are not lost.
func (manager *InstanceManager) RemoveInstance(id int) {
	manager.Mu.Lock()
	defer manager.Mu.Unlock()

	ingestInstance, ok := manager.Instances[id]
	if !ok {
		return
	}

	if ingestInstance.conn != nil {
		// Mark draining (if supported)
		if ingestInstance.cookie != 0 {
			err := ebpf.MarkSocketDraining(ebpf.DrainMapPin, ingestInstance.cookie)
			if err != nil {
				logctx.LogEvent(manager.ctx, global.VerbosityStandard, global.ErrorLog,
					"Listener %d: failed to set socket as draining: %v\n", id, err)
			}
		}

		// Wait for drain
		dataLeft, err := network.WaitUntilEmptySocket(manager.ctx, ingestInstance.conn, manager.drainTimeout, global.SocketDrainPollInterval)
		if err != nil {
			logctx.LogEvent(manager.ctx, global.VerbosityStandard, global.ErrorLog,
				"Listener %d: failed to check current socket buffer size: %v\n", id, err)
		}
		if dataLeft > 0 {
			manager.sink.Add("socket_bytes_abandoned", uint64(dataLeft))
			logctx.LogEvent(manager.ctx, global.VerbosityStandard, global.WarnLog,
				"Listener %d: Socket is being closed with %d bytes left in the buffer\n", id, dataLeft)
		}
	}

	if ingestInstance.cancel != nil {
		ingestInstance.cancel()
	}
	if ingestInstance.conn != nil {
		ingestInstance.conn.Close() // Required for listener to process cancellation
	}
	ingestInstance.wg.Wait()

	if ingestInstance.cookie != 0 {
		err := ebpf.ClearSocketDraining(ebpf.DrainMapPin, ingestInstance.cookie)
		if err != nil {
			logctx.LogEvent(manager.ctx, global.VerbosityProgress, global.WarnLog,
				"Listener %d: %v\n", id, err)
		}
	}
	delete(manager.Instances, id)
}

// Removes every instance, newest first
func (manager *InstanceManager) RemoveAll() {
	ids := manager.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		manager.RemoveInstance(ids[i])
	}
}
