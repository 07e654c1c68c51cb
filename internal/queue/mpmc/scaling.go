package mpmc

import (
	"context"
	"math/bits"
	"segmentd/internal/global"
	"segmentd/internal/logctx"

	"github.com/pbnjay/memory"
)

// Occupancy watermarks, in percent of capacity
const (
	instantGrowPct   = 90.0
	instantShrinkPct = 2.0
	trendGrowPct     = 70.0
	trendShrinkPct   = 15.0
	trendMinSteps    = 3 // consecutive same-direction depth changes
)

// Resizes on the current occupancy alone
func (container *Queue[T]) ScaleCapacity(ctx context.Context) (resized bool) {
	active := container.ActiveWrite.Load()
	occupancy := percentOf(active.Metrics.Depth.Load(), active.Size)

	switch {
	case occupancy >= instantGrowPct:
		resized = container.resize(ctx, true)
	case occupancy <= instantShrinkPct:
		resized = container.resize(ctx, false)
	}
	return
}

// Resizes on a depth history, oldest first
func (container *Queue[T]) ScaleOnTrend(ctx context.Context, depthValues []uint64) (resized bool) {
	grow, shrink := Trend(depthValues, container.ActiveWrite.Load().Size)
	if grow || shrink {
		resized = container.resize(ctx, grow)
	}
	return
}

// Reports whether the newest depth is past a watermark and the depth has been moving
// the same way for at least trendMinSteps samples. Flat samples at the tail are ignored.
func Trend(depthValues []uint64, queueSize int) (scaleUp bool, scaleDown bool) {
	if len(depthValues) < trendMinSteps || queueSize <= 0 {
		return
	}
	occupancy := percentOf(depthValues[len(depthValues)-1], queueSize)
	direction, steps := depthStreak(depthValues)
	if steps < trendMinSteps {
		return
	}
	scaleUp = direction > 0 && occupancy > trendGrowPct
	scaleDown = direction < 0 && occupancy < trendShrinkPct
	return
}

// Direction (+1/-1) and length of the newest run of same-direction changes
func depthStreak(values []uint64) (direction, steps int) {
	for i := len(values) - 1; i > 0; i-- {
		step := compare(values[i], values[i-1])
		switch {
		case direction == 0 && step == 0:
			continue
		case direction == 0:
			direction, steps = step, 1
		case step == direction:
			steps++
		default:
			return
		}
	}
	return
}

func compare(a, b uint64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

func percentOf(depth uint64, size int) float64 {
	return float64(depth) / float64(size) * 100
}

// Doubles or halves capacity within the configured bounds
func (container *Queue[T]) resize(ctx context.Context, grow bool) (resized bool) {
	active := container.ActiveWrite.Load()
	current := active.Size

	target := current / 2
	if grow {
		target = current * 2
	}
	target = ceilPow2(target)

	if grow {
		if target > container.maximumSize {
			return
		}
		// Estimate from the average queued item size
		free := memory.FreeMemory()
		perItem := active.Metrics.Bytes.Load() / max(active.Metrics.Depth.Load(), 1)
		if free > 0 && uint64(target)*perItem > free {
			logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
				"Not growing queue to %d: estimated size exceeds free memory (%d bytes)\n", target, free)
			return
		}
	} else if target < container.minimumSize || target < 2 {
		return
	}

	err := container.mutateSize(uint64(target))
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
			"Failed to scale queue capacity: %v\n", err)
		return
	}
	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"Scaled queue from %d to %d capacity\n", current, target)
	resized = true
	return
}

// Smallest power of two >= n (1 for n <= 1)
func ceilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
