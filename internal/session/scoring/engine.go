package scoring

import (
	"math"
	"time"

	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/session/judge"
)

// ScoringConfig holds configurable scoring constants (defaults match the game designs).
type ScoringConfig struct {
	BaseScore           int                            // default: 100
	MaxTimeBonus        int                            // default: 50
	DifficultyBonus     map[content.Difficulty]int     // default: easy 0, medium 5, hard 10
	ConfigItemPoints    int                            // default: 100, used when an item has no Points
	PartialCreditFactor float64                        // default: 1.0, applied to every partial config result
	IssuePoints         int                            // default: 20 per issue found
	IssueMultiplier     map[content.Difficulty]float64 // default: easy 1, medium 1.5, hard 2
	MissPenalty         int                            // default: 5 per wrong discovery attempt
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseScore:    100,
		MaxTimeBonus: 50,
		DifficultyBonus: map[content.Difficulty]int{
			content.DifficultyEasy:   0,
			content.DifficultyMedium: 5,
			content.DifficultyHard:   10,
		},
		ConfigItemPoints:    100,
		PartialCreditFactor: 1.0,
		IssuePoints:         20,
		IssueMultiplier: map[content.Difficulty]float64{
			content.DifficultyEasy:   1.0,
			content.DifficultyMedium: 1.5,
			content.DifficultyHard:   2.0,
		},
		MissPenalty: 5,
	}
}

// Engine computes round points with configurable constants.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config ScoringConfig) *Engine {
	defaults := DefaultScoringConfig()
	if config.DifficultyBonus == nil {
		config.DifficultyBonus = defaults.DifficultyBonus
	}
	if config.IssueMultiplier == nil {
		config.IssueMultiplier = defaults.IssueMultiplier
	}
	if config.PartialCreditFactor <= 0 {
		config.PartialCreditFactor = defaults.PartialCreditFactor
	}
	return &Engine{config: config}
}

// Config returns the constants in use.
func (e *Engine) Config() ScoringConfig {
	return e.config
}

// CalculateScore computes the points a finished round earns.
// - binary: base + time bonus + difficulty bonus (scaled by flag ratio) when correct, else 0
// - config: full item value + time bonus when every setting matches, else ratio * value * partial factor
// - discovery: per-issue points (scaled by difficulty) for every issue found
func (e *Engine) CalculateScore(
	item content.Item,
	result judge.Result,
	timeRemaining time.Duration,
	timeLimit time.Duration,
) int {
	correct := result.Outcome == judge.OutcomeCorrect

	switch item.Kind() {
	case content.KindBinary:
		if !correct {
			return 0
		}
		bonus := float64(e.config.DifficultyBonus[item.Difficulty])
		if len(item.SubElements) > 0 {
			bonus *= result.MatchRatio
		}
		return e.config.BaseScore + e.TimeBonus(timeRemaining, timeLimit) + round(bonus)

	case content.KindConfigSet:
		value := item.Points
		if value <= 0 {
			value = e.config.ConfigItemPoints
		}
		if correct {
			return value + e.TimeBonus(timeRemaining, timeLimit)
		}
		return round(float64(value) * result.MatchRatio * e.config.PartialCreditFactor)

	case content.KindDiscoverySet:
		return e.IssueValue(item.Difficulty) * result.Matched

	default:
		return 0
	}
}

// TimeBonus decays linearly from MaxTimeBonus when answered instantly to 0 at timeout.
func (e *Engine) TimeBonus(timeRemaining, timeLimit time.Duration) int {
	if timeLimit <= 0 {
		return 0
	}
	timeRatio := float64(timeRemaining) / float64(timeLimit)
	if timeRatio > 1.0 {
		timeRatio = 1.0
	}
	if timeRatio < 0.0 {
		timeRatio = 0.0
	}
	return round(float64(e.config.MaxTimeBonus) * timeRatio)
}

// IssueValue is the points one discovered issue is worth at a difficulty.
func (e *Engine) IssueValue(d content.Difficulty) int {
	mult, ok := e.config.IssueMultiplier[d]
	if !ok {
		mult = 1.0
	}
	return round(float64(e.config.IssuePoints) * mult)
}

// MissPenalty is subtracted for each wrong attempt in discovery games.
func (e *Engine) MissPenalty() int {
	return e.config.MissPenalty
}

// ApplyDelta adds delta to score, flooring the cumulative score at 0.
func ApplyDelta(score, delta int) int {
	score += delta
	if score < 0 {
		return 0
	}
	return score
}

func round(v float64) int {
	return int(math.Round(v))
}
