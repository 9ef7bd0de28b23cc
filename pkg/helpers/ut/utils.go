package ut

import "sync/atomic"

// IDGenerator returns a new id on every call.
type IDGenerator func() uint64

// CreateUint64IDGenerator returns a goroutine-safe generator whose first id is 1.
func CreateUint64IDGenerator() IDGenerator {
	var counter atomic.Uint64
	return func() uint64 {
		return counter.Add(1)
	}
}
