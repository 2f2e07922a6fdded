// Package prefs persists per-user language pair preferences to a JSON file.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/discord-voice-interp/internal/fileio"
	"github.com/discord-voice-interp/internal/logging"
)

// Pair is one user's configured translation direction.
type Pair struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// Store is a file-backed preference map. Reads come from the in-memory map;
// every mutation rewrites the whole file atomically. The file is small (one
// entry per user who ever configured a pair), so wholesale rewrite is
// simpler and safer than incremental updates.
type Store struct {
	path string

	mu    sync.RWMutex
	pairs map[string]Pair
}

// Open loads the store from path. A missing file yields an empty store; a
// corrupt file is an error so a bad deploy does not silently wipe
// everyone's settings.
func Open(path string) (*Store, error) {
	s := &Store{path: path, pairs: make(map[string]Pair)}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := json.Unmarshal(b, &s.pairs); err != nil {
		return nil, fmt.Errorf("parse preferences %s: %w", path, err)
	}
	logging.Infow("prefs: loaded", "path", path, "users", len(s.pairs))
	return s, nil
}

// Get implements pipeline.PreferenceSource. ok is false when the user never
// configured a pair.
func (s *Store) Get(userID string) (sourceLang, targetLang string, ok bool) {
	s.mu.RLock()
	p, ok := s.pairs[userID]
	s.mu.RUnlock()
	return p.SourceLang, p.TargetLang, ok
}

// Set records or replaces a user's language pair and persists immediately.
func (s *Store) Set(userID, sourceLang, targetLang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[userID] = Pair{SourceLang: sourceLang, TargetLang: targetLang}
	return s.saveLocked()
}

// Remove deletes a user's pair. Removing an absent user is a no-op.
func (s *Store) Remove(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pairs[userID]; !ok {
		return nil
	}
	delete(s.pairs, userID)
	return s.saveLocked()
}

// Len reports how many users have a configured pair.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pairs)
}

func (s *Store) saveLocked() error {
	b, err := json.MarshalIndent(s.pairs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := fileio.SaveFileAtomic(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
