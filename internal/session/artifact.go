package session

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/discord-voice-interp/internal/fileio"
	"github.com/discord-voice-interp/internal/logging"
)

// Artifact is one finalized per-speaker recording written to disk.
type Artifact struct {
	Path    string
	Speaker string
	Samples int
}

// Finalize drains the session and, for capturing mode, serializes every
// non-empty buffer to one WAV artifact (mono, 16-bit PCM, 48 kHz) named
// {scope}_{speaker}_{YYYYMMDD_HHMMSS}.wav under dir. Translating sessions
// are simply drained. Finalize is legal exactly once, after the session
// has been removed from the registry; a second call fails with
// ErrFinalizing and mutates nothing.
func (s *Session) Finalize(dir string) ([]Artifact, error) {
	if err := s.beginFinalize(); err != nil {
		return nil, err
	}
	defer atomic.StoreInt32(&s.state, stateDone)

	buffers := s.drainAll()
	if s.Mode != ModeCapturing {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}

	ts := s.StartTime.Format("20060102_150405")
	artifacts := make([]Artifact, 0, len(buffers))
	for speaker, samples := range buffers {
		name := fmt.Sprintf("%s_%s_%s.wav", s.Scope, speaker, ts)
		path := filepath.Join(dir, name)
		wav := EncodeWAV(samples, SampleRate, 1)
		if err := fileio.SaveFileAtomic(path, wav, 0o644); err != nil {
			logging.Errorw("finalize: failed to write artifact", "path", path, "err", err)
			return artifacts, fmt.Errorf("write artifact %s: %w", path, err)
		}
		artifacts = append(artifacts, Artifact{Path: path, Speaker: speaker, Samples: len(samples)})
		logging.Infow("finalize: wrote artifact",
			append(logging.BufferFields(speaker, len(samples), len(samples)*1000/SampleRate), "path", path)...)
	}
	return artifacts, nil
}

// EncodeWAV wraps 16-bit PCM samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataLen := uint32(len(samples) * 2)
	riffSize := uint32(4 + (8 + 16) + (8 + dataLen))

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataLen)
	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

// DecodeWAV extracts 16-bit PCM samples and the sample rate from a RIFF
// container produced by EncodeWAV. It tolerates extra chunks between fmt
// and data.
func DecodeWAV(b []byte) (samples []int16, sampleRate int, err error) {
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			return nil, 0, fmt.Errorf("truncated %s chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("short fmt chunk")
			}
			sampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
		case "data":
			samples = make([]int16, size/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(b[body+2*i : body+2*i+2]))
			}
			return samples, sampleRate, nil
		}
		off = body + size + size%2
	}
	return nil, 0, fmt.Errorf("no data chunk")
}

// SpeakerFromArtifact parses the speaker ID out of an artifact filename of
// the form {scope}_{speaker}_{timestamp}.wav. Returns empty string when
// the name does not match.
func SpeakerFromArtifact(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
