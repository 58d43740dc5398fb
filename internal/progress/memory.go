package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
)

type achievementKey struct {
	player string
	game   string
	id     achievement.ID
}

// MemoryStore keeps progress in process memory. Used for local play and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	achievements map[achievementKey]time.Time
	games        map[string]map[string]int
	quizzes      map[string]map[string]struct{}
	now          func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		achievements: make(map[achievementKey]time.Time),
		games:        make(map[string]map[string]int),
		quizzes:      make(map[string]map[string]struct{}),
		now:          time.Now,
	}
}

func (m *MemoryStore) HasAchievement(_ context.Context, playerID, gameID string, id achievement.ID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.achievements[achievementKey{playerID, gameID, id}]
	return ok, nil
}

func (m *MemoryStore) AwardAchievement(_ context.Context, playerID, gameID string, id achievement.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := achievementKey{playerID, gameID, id}
	if _, ok := m.achievements[key]; ok {
		return false, nil
	}
	m.achievements[key] = m.now().UTC()
	return true, nil
}

func (m *MemoryStore) RecordGameCompleted(_ context.Context, c Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plays, ok := m.games[c.PlayerID]
	if !ok {
		plays = make(map[string]int)
		m.games[c.PlayerID] = plays
	}
	plays[c.GameID]++
	return nil
}

func (m *MemoryStore) RecordQuizCompleted(_ context.Context, playerID, quizID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	done, ok := m.quizzes[playerID]
	if !ok {
		done = make(map[string]struct{})
		m.quizzes[playerID] = done
	}
	done[quizID] = struct{}{}
	return nil
}

func (m *MemoryStore) AggregateProgress(_ context.Context, playerID string) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := Summary{
		GamesCompleted:   len(m.games[playerID]),
		QuizzesCompleted: len(m.quizzes[playerID]),
	}
	for key := range m.achievements {
		if key.player == playerID {
			summary.BadgesUnlocked++
		}
	}
	return summary, nil
}

func (m *MemoryStore) ListAchievements(_ context.Context, playerID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for key, at := range m.achievements {
		if key.player != playerID {
			continue
		}
		out = append(out, Record{AchievementID: key.id, GameID: key.game, EarnedAt: at})
	}
	sortRecords(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].EarnedAt.Equal(records[j].EarnedAt) {
			if records[i].GameID == records[j].GameID {
				return records[i].AchievementID < records[j].AchievementID
			}
			return records[i].GameID < records[j].GameID
		}
		return records[i].EarnedAt.Before(records[j].EarnedAt)
	})
}
