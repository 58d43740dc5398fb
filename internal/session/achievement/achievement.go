package achievement

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/session/judge"
)

// ID identifies an achievement within a game.
type ID string

const (
	FirstCorrect     ID = "first_correct"
	PerfectRound     ID = "perfect_round"
	SpeedRun         ID = "speed_run"
	CategoryCoverage ID = "category_coverage"
	ScoreThreshold   ID = "score_threshold"
	StreakMaster     ID = "streak_master"
)

// Achievement is a badge a player can earn once per game.
type Achievement struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Store is the persistence collaborator that owns earned records.
// AwardAchievement must be idempotent and report whether the record is new.
type Store interface {
	HasAchievement(ctx context.Context, playerID, gameID string, id ID) (bool, error)
	AwardAchievement(ctx context.Context, playerID, gameID string, id ID) (bool, error)
}

// Thresholds parametrise the rules.
type Thresholds struct {
	SpeedRunRatio  float64 // remaining/limit must exceed this, default 0.75
	ScoreThreshold int     // default 500
	StreakTarget   int     // default 5
}

// DefaultThresholds returns production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SpeedRunRatio:  0.75,
		ScoreThreshold: 500,
		StreakTarget:   5,
	}
}

// Snapshot is the cumulative session state a rule looks at after a scoring event.
type Snapshot struct {
	Score          int
	TotalCorrect   int
	Streak         int
	Result         judge.Result
	TimeRemaining  time.Duration
	TimeLimit      time.Duration
	CategoriesSeen map[string]struct{}
	AllCategories  []string
}

// Rule pairs an achievement with the predicate that earns it.
type Rule struct {
	Achievement Achievement
	Earned      func(s Snapshot, t Thresholds) bool
}

// DefaultRules is the static rule table shared by every game.
func DefaultRules() []Rule {
	return []Rule{
		{
			Achievement: Achievement{ID: FirstCorrect, Title: "First Catch", Description: "Get your first answer right"},
			Earned: func(s Snapshot, _ Thresholds) bool {
				return s.TotalCorrect >= 1
			},
		},
		{
			Achievement: Achievement{ID: PerfectRound, Title: "Perfect Round", Description: "Find everything without a single mistake"},
			Earned: func(s Snapshot, _ Thresholds) bool {
				return s.Result.Outcome == judge.OutcomeCorrect && s.Result.MatchRatio == 1.0 && s.Result.IncorrectAttempts == 0
			},
		},
		{
			Achievement: Achievement{ID: SpeedRun, Title: "Lightning Fast", Description: "Answer correctly with most of the clock left"},
			Earned: func(s Snapshot, t Thresholds) bool {
				if s.Result.Outcome != judge.OutcomeCorrect || s.TimeLimit <= 0 {
					return false
				}
				return float64(s.TimeRemaining)/float64(s.TimeLimit) > t.SpeedRunRatio
			},
		},
		{
			Achievement: Achievement{ID: CategoryCoverage, Title: "Explorer", Description: "See a challenge from every category"},
			Earned: func(s Snapshot, _ Thresholds) bool {
				if len(s.AllCategories) == 0 {
					return false
				}
				for _, c := range s.AllCategories {
					if _, ok := s.CategoriesSeen[c]; !ok {
						return false
					}
				}
				return true
			},
		},
		{
			Achievement: Achievement{ID: ScoreThreshold, Title: "High Scorer", Description: "Reach the target score in one game"},
			Earned: func(s Snapshot, t Thresholds) bool {
				return t.ScoreThreshold > 0 && s.Score >= t.ScoreThreshold
			},
		},
		{
			Achievement: Achievement{ID: StreakMaster, Title: "On a Roll", Description: "Answer several rounds in a row correctly"},
			Earned: func(s Snapshot, t Thresholds) bool {
				return t.StreakTarget > 0 && s.Streak >= t.StreakTarget
			},
		},
	}
}

// Evaluator consults the rule table after every scoring event.
type Evaluator struct {
	rules      []Rule
	thresholds Thresholds
	store      Store
	logger     zerolog.Logger
}

// NewEvaluator creates an evaluator. A nil rules slice installs DefaultRules.
func NewEvaluator(store Store, rules []Rule, thresholds Thresholds, logger zerolog.Logger) *Evaluator {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Evaluator{
		rules:      rules,
		thresholds: thresholds,
		store:      store,
		logger:     logger.With().Str("component", "achievements").Logger(),
	}
}

// OnEvent evaluates every rule not yet earned and returns the newly earned ones.
// Calling it again for the same logical event awards nothing new.
func (e *Evaluator) OnEvent(ctx context.Context, playerID, gameID string, snap Snapshot) []Achievement {
	var earned []Achievement
	for _, rule := range e.rules {
		id := rule.Achievement.ID

		has, err := e.store.HasAchievement(ctx, playerID, gameID, id)
		if err != nil {
			e.logger.Warn().Err(err).Str("achievement", string(id)).Msg("achievement lookup failed")
			continue
		}
		if has || !rule.Earned(snap, e.thresholds) {
			continue
		}

		awarded, err := e.store.AwardAchievement(ctx, playerID, gameID, id)
		if err != nil {
			e.logger.Warn().Err(err).Str("achievement", string(id)).Msg("achievement award failed")
			continue
		}
		if !awarded {
			continue
		}

		e.logger.Info().
			Str("player_id", playerID).
			Str("game_id", gameID).
			Str("achievement", string(id)).
			Msg("achievement earned")
		earned = append(earned, rule.Achievement)
	}
	return earned
}

// Catalog lists the achievements of the rule table.
func (e *Evaluator) Catalog() []Achievement {
	out := make([]Achievement, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Achievement
	}
	return out
}
