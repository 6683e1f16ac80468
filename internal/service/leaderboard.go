package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/PoluyanbIch/triviabot/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const dateLayout = "02.01.2006 15:04"

type LeaderboardEntry struct {
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Date       string `json:"date"`
}

func NewLeaderboardEntry(p Player, score, total int, at time.Time) LeaderboardEntry {
	percentage := 0
	if total > 0 {
		percentage = (score * 100) / total
	}
	return LeaderboardEntry{
		PlayerID:   p.ID,
		Name:       p.Name,
		Score:      score,
		Total:      total,
		Percentage: percentage,
		Date:       at.Format(dateLayout),
	}
}

// beats reports whether e ranks above other: higher percentage first, then
// more correct answers.
func (e LeaderboardEntry) beats(other LeaderboardEntry) bool {
	if e.Percentage == other.Percentage {
		return e.Score > other.Score
	}
	return e.Percentage > other.Percentage
}

type LeaderboardService interface {
	// AddEntry stores entry if it is the player's best result so far and
	// reports whether it was stored.
	AddEntry(ctx context.Context, entry LeaderboardEntry) (bool, error)
	GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	// GetPlayerPosition returns the 1-based rank of the player, or -1.
	GetPlayerPosition(ctx context.Context, playerID string) (int, *LeaderboardEntry, error)
}

// NewLeaderboardService picks the backend from cfg. With no backend named it
// uses the Gist when credentials are present and memory otherwise.
func NewLeaderboardService(cfg config.Leaderboard) (LeaderboardService, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "memory"
		if cfg.Gist.ID != "" && cfg.Gist.Token != "" {
			backend = "gist"
		}
	}

	switch backend {
	case "memory":
		log.Info().Msg("Leaderboard: in-memory, results are lost on restart")
		return NewMemoryLeaderboardService(), nil
	case "gist":
		if cfg.Gist.ID == "" || cfg.Gist.Token == "" {
			return nil, fmt.Errorf("gist leaderboard needs GITHUB_GIST_ID and GITHUB_TOKEN")
		}
		log.Info().Str("gist", cfg.Gist.ID).Msg("Leaderboard: GitHub Gist")
		return NewGistLeaderboardService(cfg.Gist), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis leaderboard: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Leaderboard: Redis")
		return NewRedisLeaderboardService(client, cfg.Redis.Key), nil
	default:
		return nil, fmt.Errorf("unknown leaderboard backend %q", backend)
	}
}

// sortEntries orders best first; equal results are ordered by player ID so
// every backend lists ties the same way.
func sortEntries(entries []LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.beats(b) || b.beats(a) {
			return a.beats(b)
		}
		return a.PlayerID < b.PlayerID
	})
}

func topN(entries []LeaderboardEntry, limit int) []LeaderboardEntry {
	sorted := make([]LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sortEntries(sorted)

	if limit <= 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}

// mergeEntry folds entry into entries, keeping each player's best result.
func mergeEntry(entries []LeaderboardEntry, entry LeaderboardEntry) ([]LeaderboardEntry, bool) {
	for i, existing := range entries {
		if existing.PlayerID == entry.PlayerID {
			if entry.beats(existing) {
				entries[i] = entry
				return entries, true
			}
			return entries, false
		}
	}
	return append(entries, entry), true
}

func positionOf(sorted []LeaderboardEntry, playerID string) (int, *LeaderboardEntry) {
	for i, entry := range sorted {
		if entry.PlayerID == playerID {
			e := entry
			return i + 1, &e
		}
	}
	return -1, nil
}

// MemoryLeaderboardService keeps results in process memory.
type MemoryLeaderboardService struct {
	mu      sync.RWMutex
	entries []LeaderboardEntry
}

func NewMemoryLeaderboardService() *MemoryLeaderboardService {
	return &MemoryLeaderboardService{entries: make([]LeaderboardEntry, 0)}
}

func (ms *MemoryLeaderboardService) AddEntry(_ context.Context, entry LeaderboardEntry) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var stored bool
	ms.entries, stored = mergeEntry(ms.entries, entry)
	return stored, nil
}

func (ms *MemoryLeaderboardService) GetTop(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return topN(ms.entries, limit), nil
}

func (ms *MemoryLeaderboardService) GetPlayerPosition(_ context.Context, playerID string) (int, *LeaderboardEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	pos, entry := positionOf(topN(ms.entries, 0), playerID)
	return pos, entry, nil
}
