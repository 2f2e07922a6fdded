package session

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/discord-voice-interp/internal/logging"
)

// StartArtifactCleaner runs a background sweep of dir, removing WAV
// artifacts older than retention. Artifacts are normally deleted right
// after a successful transcription; this catches leftovers from failed
// transcriptions and crashed finalizes. Caller must call wg.Add(1) before
// calling; the goroutine calls wg.Done() on exit.
func StartArtifactCleaner(ctx context.Context, wg *sync.WaitGroup, dir string, retention, interval time.Duration) {
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepArtifacts(dir, retention)
			}
		}
	}()
}

func sweepArtifacts(dir string, retention time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Debugw("artifact cleaner: readDir failed", "dir", dir, "err", err)
		return
	}
	type stale struct {
		path string
		mod  time.Time
	}
	var candidates []stale
	for _, fi := range entries {
		name := fi.Name()
		if !strings.HasSuffix(name, ".wav") && !strings.HasSuffix(name, ".wav.tmp") {
			continue
		}
		info, err := fi.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, stale{path: filepath.Join(dir, name), mod: info.ModTime()})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mod.Before(candidates[j].mod) })
	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, c := range candidates {
		if c.mod.Before(cutoff) {
			if err := os.Remove(c.path); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		logging.Infow("artifact cleaner: removed stale artifacts", "dir", dir, "count", removed)
	}
}
