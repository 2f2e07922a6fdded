package voice

// Event is the closed set of notifications the transport emits. Consumers
// dispatch with a type switch over the three concrete types below; the
// unexported marker keeps the set closed.
type Event interface {
	isTransportEvent()
}

// AttributionEvent announces which user an RTP stream (SSRC) belongs to.
// Speaking=false means the user released the channel without a new stream
// mapping; buffered audio is marked silent, not flushed.
type AttributionEvent struct {
	SSRC     uint32
	UserID   string
	Speaking bool
}

// AudioTickEvent carries one encoded opus frame for a stream. Decoding
// happens on the consumer side so the network receive path stays cheap.
type AudioTickEvent struct {
	SSRC uint32
	Opus []byte
}

// DisconnectEvent signals either one speaker leaving the voice channel
// (UserID set) or the whole voice connection dropping (UserID empty).
type DisconnectEvent struct {
	UserID string
}

func (AttributionEvent) isTransportEvent() {}
func (AudioTickEvent) isTransportEvent()   {}
func (DisconnectEvent) isTransportEvent()  {}
