package session

import (
	"sync"
)

// Attributor maintains the mapping from ephemeral transport stream IDs
// (SSRCs) to durable speaker identities. Mappings are last-write-wins and
// never expire: stream IDs are not reused within a session, so a stale
// mapping is only ever replaced by a newer attribution event.
type Attributor struct {
	mu sync.RWMutex
	m  map[uint32]string
}

func NewAttributor() *Attributor {
	return &Attributor{m: make(map[uint32]string)}
}

// Attribute records streamID -> speakerID, overwriting any prior mapping.
func (a *Attributor) Attribute(streamID uint32, speakerID string) {
	a.mu.Lock()
	a.m[streamID] = speakerID
	a.mu.Unlock()
}

// Lookup returns the speaker for a stream, or ok=false when the stream has
// not been attributed yet. Callers on the ingestion path drop the frame in
// that case; they never block or error.
func (a *Attributor) Lookup(streamID uint32) (string, bool) {
	a.mu.RLock()
	id, ok := a.m[streamID]
	a.mu.RUnlock()
	if id == "" {
		return "", false
	}
	return id, ok
}
