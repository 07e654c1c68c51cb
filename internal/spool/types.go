package spool

import (
	"sync"
	"time"
)

// Directory of discarded batches waiting for replay
type Store struct {
	Dir string
	mu  sync.Mutex
	seq uint64 // disambiguates files written in the same nanosecond
}

// On-disk form of one discarded batch
type Record struct {
	Sequence  uint64    `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
	SpooledAt time.Time `json:"spooled_at"`
	Reason    string    `json:"reason"`
	Documents []string  `json:"documents"`
}

const (
	fileSuffix string = ".spool"
	tmpSuffix  string = ".tmp"
	digestSize int    = 32 // blake2b-256
	fileMode          = 0o600
	dirMode           = 0o700
)
