package session

import (
	"errors"
	"sort"
	"time"

	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
	"github.com/gokatarajesh/literacy-games/internal/session/judge"
)

// Status is the coarse state of a session.
type Status string

const (
	StatusIntro    Status = "intro"
	StatusPlaying  Status = "playing"
	StatusFeedback Status = "feedback"
	StatusGameOver Status = "game_over"
)

var (
	// ErrInvalidTransition rejects events that do not apply in the current status.
	// State is never modified when it is returned.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrUnsupportedAction rejects an interaction the active item's kind does not offer.
	ErrUnsupportedAction = errors.New("action not supported by the active item")
	// ErrUnknownElement rejects flags, settings or options the active item does not have.
	ErrUnknownElement = errors.New("unknown element for the active item")
)

// Options configures one session.
type Options struct {
	GameID        string
	PlayerID      string
	Lives         int                // default 3
	MaxRounds     int                // 0 means play until lives run out
	RoundTime     time.Duration      // default 30s, before difficulty scaling
	MinRoundTime  time.Duration      // default 10s
	LevelTimeStep time.Duration      // default 5s, removed per level after the first
	Difficulty    content.Difficulty // default medium
}

// DefaultOptions returns production defaults for a game and player.
func DefaultOptions(gameID, playerID string) Options {
	return Options{
		GameID:        gameID,
		PlayerID:      playerID,
		Lives:         3,
		RoundTime:     30 * time.Second,
		MinRoundTime:  10 * time.Second,
		LevelTimeStep: 5 * time.Second,
		Difficulty:    content.DifficultyMedium,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions(o.GameID, o.PlayerID)
	if o.Lives <= 0 {
		o.Lives = d.Lives
	}
	if o.MaxRounds < 0 {
		o.MaxRounds = 0
	}
	if o.RoundTime <= 0 {
		o.RoundTime = d.RoundTime
	}
	if o.MinRoundTime <= 0 {
		o.MinRoundTime = d.MinRoundTime
	}
	if o.LevelTimeStep < 0 {
		o.LevelTimeStep = 0
	}
	if !o.Difficulty.Valid() {
		o.Difficulty = d.Difficulty
	}
	return o
}

var difficultyTimeScale = map[content.Difficulty]float64{
	content.DifficultyEasy:   1.25,
	content.DifficultyMedium: 1.0,
	content.DifficultyHard:   0.75,
}

// State is a read-only snapshot of the session.
type State struct {
	GameID         string             `json:"game_id"`
	Status         Status             `json:"status"`
	Score          int                `json:"score"`
	Lives          int                `json:"lives"`
	RoundIndex     int                `json:"round_index"`
	Level          int                `json:"level"`
	Difficulty     content.Difficulty `json:"difficulty"`
	TotalCorrect   int                `json:"total_correct"`
	Streak         int                `json:"streak"`
	ServedItemIDs  []string           `json:"served_item_ids"`
	CategoriesSeen []string           `json:"categories_seen"`
}

// RoundState is a read-only snapshot of the active round.
type RoundState struct {
	Item              content.Item      `json:"-"`
	TimeLimit         time.Duration     `json:"time_limit"`
	TimeRemaining     time.Duration     `json:"time_remaining"`
	Selected          []string          `json:"selected"`
	Choices           map[string]string `json:"choices"`
	Found             []string          `json:"found"`
	IncorrectAttempts int               `json:"incorrect_attempts"`
	Submitted         *judge.Judgment   `json:"submitted,omitempty"`
}

// Feedback is emitted once per finished round.
type Feedback struct {
	Item         content.Item              `json:"-"`
	Result       judge.Result              `json:"result"`
	Points       int                       `json:"points"`
	LifeLost     bool                      `json:"life_lost"`
	Achievements []achievement.Achievement `json:"achievements,omitempty"`
}

// Presenter receives state for rendering. Calls are synchronous.
type Presenter interface {
	OnStateChange(s State)
	OnRoundStart(item content.Item, limit time.Duration)
	OnFeedback(f Feedback)
	OnTick(remaining time.Duration)
}

// Celebrator is notified of newly earned achievements. It must not block.
type Celebrator interface {
	Celebrate(gameID string, a achievement.Achievement)
}

type nopPresenter struct{}

func (nopPresenter) OnStateChange(State)                      {}
func (nopPresenter) OnRoundStart(content.Item, time.Duration) {}
func (nopPresenter) OnFeedback(Feedback)                      {}
func (nopPresenter) OnTick(time.Duration)                     {}

type nopCelebrator struct{}

func (nopCelebrator) Celebrate(string, achievement.Achievement) {}

type sessionState struct {
	status         Status
	score          int
	lives          int
	roundIndex     int
	level          int
	totalCorrect   int
	streak         int
	served         map[string]struct{}
	categoriesSeen map[string]struct{}
}

type roundState struct {
	item              content.Item
	selected          map[string]struct{}
	choices           map[string]string
	found             map[string]struct{}
	incorrectAttempts int
	submitted         *judge.Judgment
}

func newRound(item content.Item) *roundState {
	return &roundState{
		item:     item,
		selected: make(map[string]struct{}),
		choices:  make(map[string]string),
		found:    make(map[string]struct{}),
	}
}

// judgment folds the in-round interaction into a judgment.
func (r *roundState) judgment() judge.Judgment {
	choices := make(map[string]string, len(r.choices))
	for k, v := range r.choices {
		choices[k] = v
	}
	return judge.Judgment{
		Flagged:           sortedKeys(r.selected),
		Choices:           choices,
		Found:             sortedKeys(r.found),
		IncorrectAttempts: r.incorrectAttempts,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
