package shared

import (
	"segmentd/internal/collector/buffer"
	"segmentd/internal/collector/managers/in"
	"segmentd/internal/collector/managers/proc"
	"segmentd/internal/collector/uploader"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
)

// Pipeline component trackers (reverse order)
type Managers struct {
	Uploader   *uploader.Instance
	BatchQueue *mpmc.Queue[*buffer.Batch]
	Buffer     *buffer.Instance
	Proc       *proc.InstanceManager
	Input      *in.InstanceManager
	Counters   *metrics.Counters
}
