package entities

import (
	"sync"
	"time"
)

var (
	idMu   sync.Mutex
	lastID int64
)

// NextID returns a millisecond timestamp id that is strictly greater than any
// id previously handed out by this process.
func NextID(now time.Time) int64 {
	idMu.Lock()
	defer idMu.Unlock()

	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}

// ObserveID advances the generator past an id loaded from storage
func ObserveID(id int64) {
	idMu.Lock()
	defer idMu.Unlock()
	if id > lastID {
		lastID = id
	}
}
