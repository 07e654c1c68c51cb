// Lock-free helpers for the uint64 counters shared by pipeline stages
package atomics

import "sync/atomic"

// Subtracts value from source without wrapping below zero. Returns the stored result.
func SaturatingSub(source *atomic.Uint64, value uint64) (result uint64) {
	for {
		current := source.Load()
		result = 0
		if value < current {
			result = current - value
		}
		if current == result || source.CompareAndSwap(current, result) {
			return
		}
	}
}

// Raises target to value if value is larger (high-water mark)
func StoreMax(target *atomic.Uint64, value uint64) {
	for {
		current := target.Load()
		if value <= current {
			return
		}
		if target.CompareAndSwap(current, value) {
			return
		}
	}
}
