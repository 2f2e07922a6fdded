package voice

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// cacheTTL controls how long a resolved display name stays valid before the
// next lookup hits Discord again.
var cacheTTL = 5 * time.Minute

type cacheEntry struct {
	val    string
	expiry time.Time
}

// Resolver maps user IDs to display names for transcript labeling,
// preferring the guild nickname in "Nick (username)" form. Lookups are
// cached with a TTL; misses fall back to the raw user ID.
type Resolver struct {
	s       *discordgo.Session
	guildID string

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewResolver(s *discordgo.Session, guildID string) *Resolver {
	return &Resolver{s: s, guildID: guildID, cache: make(map[string]cacheEntry)}
}

// DisplayName implements pipeline.NameResolver.
func (r *Resolver) DisplayName(userID string) string {
	if r.s == nil || userID == "" {
		return ""
	}
	r.mu.Lock()
	if e, ok := r.cache[userID]; ok {
		if time.Now().Before(e.expiry) {
			r.mu.Unlock()
			return e.val
		}
		delete(r.cache, userID)
	}
	r.mu.Unlock()

	name := r.lookup(userID)
	if name == "" {
		return ""
	}
	r.mu.Lock()
	r.cache[userID] = cacheEntry{val: name, expiry: time.Now().Add(cacheTTL)}
	r.mu.Unlock()
	return name
}

func (r *Resolver) lookup(userID string) string {
	if r.guildID != "" {
		var m *discordgo.Member
		if r.s.State != nil {
			m, _ = r.s.State.Member(r.guildID, userID)
		}
		if m == nil {
			m, _ = r.s.GuildMember(r.guildID, userID)
		}
		if m != nil && m.User != nil {
			if m.Nick != "" && m.Nick != m.User.Username {
				return fmt.Sprintf("%s (%s)", m.Nick, m.User.Username)
			}
			return m.User.Username
		}
	}
	if u, err := r.s.User(userID); err == nil && u != nil {
		return u.Username
	}
	return ""
}
