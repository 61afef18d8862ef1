package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Leaderboard defaults.
const (
	LeaderboardKey   = "multiplicationResults"
	LeaderboardLimit = 10
)

// LeaderboardEntry is one finished session.
type LeaderboardEntry struct {
	Correct int     `json:"correct"`
	Time    float64 `json:"time"`
}

// KeyValueStore holds the serialized leaderboard under a single key.
type KeyValueStore interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// ranksBefore reports whether a belongs ahead of b.
func ranksBefore(a, b LeaderboardEntry) bool {
	if a.Correct != b.Correct {
		return a.Correct > b.Correct
	}
	return a.Time < b.Time
}

// RankEntries returns a sorted copy of entries: most correct first, then
// fastest. Ties keep their original order.
func RankEntries(entries []LeaderboardEntry) []LeaderboardEntry {
	sorted := make([]LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ranksBefore(sorted[i], sorted[j])
	})
	return sorted
}

// Leaderboard is the bounded, sorted record of past sessions. It is safe
// for concurrent use; records are applied one at a time.
type Leaderboard struct {
	mu    sync.Mutex
	store KeyValueStore
	key   string
	limit int
}

// NewLeaderboard stores entries under LeaderboardKey. A nil store keeps
// results in memory.
func NewLeaderboard(store KeyValueStore) *Leaderboard {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Leaderboard{store: store, key: LeaderboardKey, limit: LeaderboardLimit}
}

// Entries returns the persisted leaderboard. An absent, unreadable, or
// malformed value yields an empty leaderboard.
func (l *Leaderboard) Entries(ctx context.Context) []LeaderboardEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries(ctx)
}

func (l *Leaderboard) entries(ctx context.Context) []LeaderboardEntry {
	raw, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		log.Printf("Error loading leaderboard: %v", err)
		return []LeaderboardEntry{}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []LeaderboardEntry{}
	}

	var entries []LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Printf("Error decoding leaderboard: %v", err)
		return []LeaderboardEntry{}
	}
	return l.truncate(RankEntries(entries))
}

// Record appends entry, re-sorts, truncates to the limit, and persists the
// result. It returns the new leaderboard and the 1-based rank of entry, or
// 0 when entry did not make the cut. On a write error the returned
// leaderboard is still the one that would have been stored.
func (l *Leaderboard) Record(ctx context.Context, entry LeaderboardEntry) ([]LeaderboardEntry, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.entries(ctx)

	rank := 1
	for _, existing := range current {
		if !ranksBefore(entry, existing) {
			rank++
		}
	}
	if rank > l.limit {
		rank = 0
	}

	updated := l.truncate(RankEntries(append(current, entry)))

	content, err := json.Marshal(updated)
	if err != nil {
		return updated, rank, fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := l.store.Set(ctx, l.key, string(content)); err != nil {
		return updated, rank, fmt.Errorf("save leaderboard: %w", err)
	}
	return updated, rank, nil
}

func (l *Leaderboard) truncate(entries []LeaderboardEntry) []LeaderboardEntry {
	if len(entries) > l.limit {
		return entries[:l.limit]
	}
	return entries
}

// MemoryStore keeps values in process memory; they are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (ms *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	value, ok := ms.values[key]
	return value, ok, nil
}

func (ms *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.values[key] = value
	return nil
}

// StoreConfig selects a leaderboard backend.
type StoreConfig struct {
	SQLitePath  string
	GistID      string
	GithubToken string
}

// NewStore picks SQLite when a path is set, then a Gist when both gist
// settings are present, and memory otherwise.
func NewStore(cfg StoreConfig) (KeyValueStore, error) {
	if path := strings.TrimSpace(cfg.SQLitePath); path != "" {
		store, err := OpenSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		log.Printf("Leaderboard stored in sqlite at %s", path)
		return store, nil
	}

	if cfg.GistID != "" && cfg.GithubToken != "" {
		log.Printf("Leaderboard stored in gist %s", cfg.GistID)
		return NewGistStore(cfg.GistID, cfg.GithubToken), nil
	}

	log.Println("Leaderboard stored in memory, results are lost on restart")
	return NewMemoryStore(), nil
}
