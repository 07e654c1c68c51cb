package proc

import (
	"context"
	"segmentd/internal/collector/decoder"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"strconv"
)

// Create additional decoder instance
func (manager *InstanceManager) AddInstance() (id int) {
	manager.Mu.Lock()
	defer manager.Mu.Unlock()

	id = manager.nextID
	manager.nextID++

	// Add log context
	manager.ctx = logctx.AppendCtxTag(manager.ctx, strconv.Itoa(id))
	defer func() { manager.ctx = logctx.RemoveLastCtxTag(manager.ctx) }()

	procInstance := &Instance{
		Decoder: decoder.New(logctx.GetTagList(manager.ctx), manager.Inbox, manager.out, manager.sink),
	}

	manager.Instances[id] = procInstance

	procCtx, cancelInstance := context.WithCancel(context.Background())
	procInstance.cancel = cancelInstance
	procCtx = context.WithValue(procCtx, global.LoggerKey, logctx.GetLogger(manager.ctx))

	procInstance.wg.Add(1)
	go func() {
		defer procInstance.wg.Done()
		procCtx := logctx.OverwriteCtxTag(procCtx, procInstance.Decoder.Namespace)
		procInstance.Decoder.Run(procCtx)
	}()
	return
}

// Remove existing instance. A datagram already popped is still decoded and buffered.
func (manager *InstanceManager) RemoveInstance(id int) {
	manager.Mu.Lock()
	defer manager.Mu.Unlock()

	procInstance, ok := manager.Instances[id]
	if ok {
		if procInstance.cancel != nil {
			procInstance.cancel()
		}

		procInstance.wg.Wait()

		delete(manager.Instances, id)
	}
}
