// Package voice adapts a Discord voice connection to the session layer:
// it turns discordgo callbacks into a bounded stream of tagged transport
// events, decodes opus frames, and feeds attributed PCM into the active
// session. It also provides the Discord-backed name resolver and presenter
// used by the pipeline.
package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/hraban/opus"

	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/metrics"
	"github.com/discord-voice-interp/internal/session"
)

// frameSize is one 20ms mono opus frame at 48 kHz.
const frameSize = 48000 / 50

// Transport bridges one guild's voice connection to its session. Producer
// callbacks enqueue events without blocking; Run consumes them on a single
// goroutine, which also serializes access to the opus decoder.
type Transport struct {
	ds *discordgo.Session

	mu   sync.Mutex
	vc   *discordgo.VoiceConnection
	sess *session.Session

	dec    *opus.Decoder
	events chan Event
}

// NewTransport creates a transport with a bounded event queue. queueLen
// bounds how far the consumer may fall behind before frames are dropped.
func NewTransport(ds *discordgo.Session, queueLen int) (*Transport, error) {
	if queueLen <= 0 {
		queueLen = 256
	}
	dec, err := opus.NewDecoder(session.SampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	t := &Transport{
		ds:     ds,
		dec:    dec,
		events: make(chan Event, queueLen),
	}
	// An empty channel in a voice state update means the user left voice
	// entirely; surface it as a per-speaker disconnect.
	ds.AddHandler(func(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs.ChannelID == "" {
			t.enqueue(DisconnectEvent{UserID: vs.UserID})
		}
	})
	return t, nil
}

// Bind points the transport at the session that should receive audio.
// Passing nil detaches; events arriving while detached are dropped.
func (t *Transport) Bind(s *session.Session) {
	t.mu.Lock()
	t.sess = s
	t.mu.Unlock()
}

func (t *Transport) session() *session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess
}

// Join connects to the voice channel muted (receive-only) and starts the
// receive goroutine. Speaking updates are registered on the voice
// connection so SSRC attribution flows as AttributionEvents.
func (t *Transport) Join(guildID, channelID string) error {
	vc, err := t.ds.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return fmt.Errorf("join voice channel %s/%s: %w", guildID, channelID, err)
	}
	t.mu.Lock()
	t.vc = vc
	t.mu.Unlock()

	vc.AddHandler(func(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
		t.enqueue(AttributionEvent{SSRC: uint32(su.SSRC), UserID: su.UserID, Speaking: su.Speaking})
	})

	go t.receive(vc)
	logging.Infow("transport: joined voice channel", "guild_id", guildID, "channel_id", channelID)
	return nil
}

// Leave disconnects from voice. The receive goroutine notices the closed
// packet channel and emits a DisconnectEvent.
func (t *Transport) Leave() {
	t.mu.Lock()
	vc := t.vc
	t.vc = nil
	t.mu.Unlock()
	if vc != nil {
		_ = vc.Disconnect()
	}
}

// receive drains the connection's opus packet stream into the event queue.
func (t *Transport) receive(vc *discordgo.VoiceConnection) {
	for pkt := range vc.OpusRecv {
		if pkt == nil {
			continue
		}
		data := make([]byte, len(pkt.Opus))
		copy(data, pkt.Opus)
		t.enqueue(AudioTickEvent{SSRC: pkt.SSRC, Opus: data})
	}
	t.enqueue(DisconnectEvent{})
}

// enqueue never blocks: when the consumer is behind, audio frames are
// dropped and counted. Attribution and disconnect events matter more than
// any single frame, so they spin-drop one queued event to make room.
func (t *Transport) enqueue(ev Event) {
	select {
	case t.events <- ev:
		return
	default:
	}
	switch ev.(type) {
	case AudioTickEvent:
		metrics.FramesDropped.WithLabelValues("queue_full").Inc()
	default:
		select {
		case <-t.events:
		default:
		}
		select {
		case t.events <- ev:
		default:
		}
	}
}

// Run consumes transport events until ctx is cancelled or the connection
// drops, feeding the bound session. Returns nil on DisconnectEvent.
func (t *Transport) Run(ctx context.Context) error {
	pcm := make([]int16, frameSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-t.events:
			switch e := ev.(type) {
			case AttributionEvent:
				s := t.session()
				if s == nil {
					continue
				}
				if e.UserID != "" {
					s.Attribute(e.SSRC, e.UserID)
				}
				if !e.Speaking {
					s.MarkSilence(e.SSRC)
				}
			case AudioTickEvent:
				s := t.session()
				if s == nil {
					continue
				}
				n, err := t.dec.Decode(e.Opus, pcm)
				if err != nil {
					metrics.FramesDropped.WithLabelValues("decode_error").Inc()
					logging.Debugw("transport: opus decode failed", "ssrc", e.SSRC, "err", err)
					continue
				}
				samples := make([]int16, n)
				copy(samples, pcm[:n])
				s.AppendAudio(e.SSRC, samples)
			case DisconnectEvent:
				if e.UserID != "" {
					// Speaker left. Their buffer drains through the normal
					// silence path; nothing to tear down.
					logging.Debugw("transport: speaker left voice channel", "user_id", e.UserID)
					continue
				}
				logging.Infow("transport: voice connection closed")
				return nil
			}
		}
	}
}
