package chatbot

import (
	"strings"
	"sync"
	"time"

	"github.com/voicebot-dev/voicebot/internal/ailog"
	obs "github.com/voicebot-dev/voicebot/pkg/observability"
	"github.com/voicebot-dev/voicebot/pkg/persona"
)

// Cache maps a (userID, persona name) composite key to exactly one live
// Chatbot, creating sessions on first access. Construct one Cache at
// process start and inject it into request handlers.
//
// Capacity is unbounded by default; long-running deployments should
// schedule EvictIdle.
type Cache struct {
	mu       sync.Mutex
	sessions map[string]*Chatbot

	registry *persona.Registry
	deps     Deps
	cfg      Config
}

// NewCache creates a session cache. New sessions resolve their persona
// from registry and are built with deps and cfg.
func NewCache(registry *persona.Registry, deps Deps, cfg Config) *Cache {
	return &Cache{
		sessions: make(map[string]*Chatbot),
		registry: registry,
		deps:     deps,
		cfg:      cfg,
	}
}

func compositeKey(userID, personaName string) string {
	return userID + ":" + personaName
}

// GetOrCreate returns the session for the composite key, constructing
// and registering one atomically on first access. Returns
// persona.ErrUnknownPersona if the persona name is not registered.
func (c *Cache) GetOrCreate(userID, personaName string) (*Chatbot, error) {
	key := compositeKey(userID, personaName)

	c.mu.Lock()
	defer c.mu.Unlock()

	if bot, ok := c.sessions[key]; ok {
		return bot, nil
	}

	p, err := c.registry.Resolve(personaName)
	if err != nil {
		return nil, err
	}

	bot, err := New(p, userID, c.deps, c.cfg)
	if err != nil {
		return nil, err
	}

	c.sessions[key] = bot
	obs.SetActiveSessions(len(c.sessions))
	ailog.Debugf("created session %s", bot)
	return bot, nil
}

// Exists reports whether any session exists for the raw user key,
// regardless of persona. Note the asymmetry with GetOrCreate, which is
// keyed by (user, persona): this is a user-level presence probe and is
// deliberately not reconciled with the composite-key lookup.
func (c *Cache) Exists(userID string) bool {
	prefix := userID + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.sessions {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Len returns the number of live sessions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// EvictIdle removes sessions whose last turn is older than maxIdle and
// returns the user IDs of the evicted sessions, so callers can release
// per-user state such as rate limiter buckets. Conversation memory of
// evicted sessions is discarded; a subsequent GetOrCreate starts fresh.
//
// LastTurn blocks while its session is mid-turn, so timestamps are
// inspected on a snapshot without holding the cache mutex; lookups
// never stall behind a sweep.
func (c *Cache) EvictIdle(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	c.mu.Lock()
	snapshot := make(map[string]*Chatbot, len(c.sessions))
	for key, bot := range c.sessions {
		snapshot[key] = bot
	}
	c.mu.Unlock()

	stale := make(map[string]*Chatbot)
	for key, bot := range snapshot {
		if bot.LastTurn().Before(cutoff) {
			stale[key] = bot
		}
	}
	if len(stale) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []string
	for key, bot := range stale {
		// Only evict the exact session observed in the snapshot.
		if c.sessions[key] != bot {
			continue
		}
		delete(c.sessions, key)
		evicted = append(evicted, bot.UserID())
	}
	if len(evicted) > 0 {
		obs.SetActiveSessions(len(c.sessions))
		ailog.Debugf("evicted %d idle sessions", len(evicted))
	}
	return evicted
}
