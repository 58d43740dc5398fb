package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
	"github.com/gokatarajesh/literacy-games/internal/session/judge"
	"github.com/gokatarajesh/literacy-games/internal/session/scoring"
	"github.com/gokatarajesh/literacy-games/internal/session/timer"
)

// Hooks are the collaborators a controller reports to. Nil fields are no-ops.
type Hooks struct {
	Presenter    Presenter
	Celebrator   Celebrator
	Achievements *achievement.Evaluator
}

// Controller is the single-writer state machine of one play-through.
// It is not safe for concurrent use; hosts serialise calls.
type Controller struct {
	opts         Options
	catalog      *content.Catalog
	evaluator    *judge.Evaluator
	scorer       *scoring.Engine
	achievements *achievement.Evaluator
	presenter    Presenter
	celebrator   Celebrator
	timer        *timer.Round
	logger       zerolog.Logger

	state sessionState
	round *roundState
}

// NewController builds a controller in the intro state.
func NewController(catalog *content.Catalog, scorer *scoring.Engine, hooks Hooks, opts Options, logger zerolog.Logger) *Controller {
	opts = opts.withDefaults()
	if opts.GameID == "" {
		opts.GameID = catalog.GameID()
	}
	if scorer == nil {
		scorer = scoring.NewEngine(scoring.DefaultScoringConfig())
	}
	c := &Controller{
		opts:         opts,
		catalog:      catalog,
		evaluator:    judge.NewEvaluator(),
		scorer:       scorer,
		achievements: hooks.Achievements,
		presenter:    hooks.Presenter,
		celebrator:   hooks.Celebrator,
		timer:        timer.New(),
		logger: logger.With().
			Str("component", "session").
			Str("game_id", opts.GameID).
			Str("player_id", opts.PlayerID).
			Logger(),
	}
	if c.presenter == nil {
		c.presenter = nopPresenter{}
	}
	if c.celebrator == nil {
		c.celebrator = nopCelebrator{}
	}
	c.state = c.freshState()
	return c
}

func (c *Controller) freshState() sessionState {
	return sessionState{
		status:         StatusIntro,
		lives:          c.opts.Lives,
		level:          1,
		served:         make(map[string]struct{}),
		categoriesSeen: make(map[string]struct{}),
	}
}

// Options returns the effective options.
func (c *Controller) Options() Options { return c.opts }

// Status returns the current status without building a full snapshot.
func (c *Controller) Status() Status { return c.state.status }

// Start moves intro -> playing and serves the first round.
func (c *Controller) Start() error {
	if c.state.status != StatusIntro {
		return c.reject("start")
	}
	c.state = c.freshState()
	c.logger.Info().Str("difficulty", string(c.opts.Difficulty)).Msg("session started")
	return c.startRound()
}

// Restart discards the current run and starts a fresh one from any status.
func (c *Controller) Restart() error {
	c.timer.Reset()
	c.round = nil
	c.state = c.freshState()
	c.logger.Info().Msg("session restarted")
	return c.startRound()
}

// ToggleFlag marks or unmarks a sub-element of the active binary item.
func (c *Controller) ToggleFlag(subElementID string) error {
	if c.state.status != StatusPlaying {
		return c.reject("toggle_flag")
	}
	item := c.round.item
	if item.Kind() != content.KindBinary {
		return fmt.Errorf("%w: toggle_flag on %s item", ErrUnsupportedAction, item.Kind())
	}
	if !hasSubElement(item, subElementID) {
		return fmt.Errorf("%w: sub-element %q", ErrUnknownElement, subElementID)
	}
	if _, ok := c.round.selected[subElementID]; ok {
		delete(c.round.selected, subElementID)
	} else {
		c.round.selected[subElementID] = struct{}{}
	}
	return nil
}

// Choose records the option picked for a setting of the active config item.
func (c *Controller) Choose(settingID, optionID string) error {
	if c.state.status != StatusPlaying {
		return c.reject("choose_option")
	}
	item := c.round.item
	if item.Kind() != content.KindConfigSet {
		return fmt.Errorf("%w: choose_option on %s item", ErrUnsupportedAction, item.Kind())
	}
	if !hasOption(item, settingID, optionID) {
		return fmt.Errorf("%w: setting %q option %q", ErrUnknownElement, settingID, optionID)
	}
	c.round.choices[settingID] = optionID
	return nil
}

// Probe checks one issue id against the active discovery item. A hit is
// recorded; the round finishes when every issue is found. A miss counts as an
// incorrect attempt and costs the miss penalty, floored at a score of 0.
func (c *Controller) Probe(ctx context.Context, issueID string) (bool, error) {
	if c.state.status != StatusPlaying {
		return false, c.reject("probe_issue")
	}
	item := c.round.item
	if item.Kind() != content.KindDiscoverySet {
		return false, fmt.Errorf("%w: probe_issue on %s item", ErrUnsupportedAction, item.Kind())
	}

	if !hasIssue(item, issueID) {
		c.round.incorrectAttempts++
		c.state.score = scoring.ApplyDelta(c.state.score, -c.scorer.MissPenalty())
		c.logger.Debug().Str("issue_id", issueID).Int("score", c.state.score).Msg("wrong discovery attempt")
		c.presenter.OnStateChange(c.State())
		return false, nil
	}

	if _, dup := c.round.found[issueID]; dup {
		return true, nil
	}
	c.round.found[issueID] = struct{}{}
	if len(c.round.found) < len(item.Verdict.Issues) {
		return true, nil
	}
	return true, c.finishRound(ctx, c.round.judgment())
}

// Submit finishes a binary or config round with the player's judgment. Flags
// and choices omitted from j fall back to what was toggled during the round.
func (c *Controller) Submit(ctx context.Context, j judge.Judgment) error {
	if c.state.status != StatusPlaying {
		return c.reject("submit_judgment")
	}
	item := c.round.item
	acc := c.round.judgment()

	switch item.Kind() {
	case content.KindBinary:
		if j.Flagged == nil {
			j.Flagged = acc.Flagged
		}
		for _, id := range j.Flagged {
			if !hasSubElement(item, id) {
				return fmt.Errorf("%w: sub-element %q", ErrUnknownElement, id)
			}
		}
	case content.KindConfigSet:
		for setting, option := range j.Choices {
			if !hasOption(item, setting, option) {
				return fmt.Errorf("%w: setting %q option %q", ErrUnknownElement, setting, option)
			}
			acc.Choices[setting] = option
		}
		j.Choices = acc.Choices
	default:
		return fmt.Errorf("%w: submit_judgment on %s item", ErrUnsupportedAction, item.Kind())
	}

	j.Found = nil
	j.IncorrectAttempts = acc.IncorrectAttempts
	j.TimedOut = false
	return c.finishRound(ctx, j)
}

// Tick advances the round clock by one second. Expiry finishes the round with a
// timeout judgment built from whatever the player had done so far.
func (c *Controller) Tick(ctx context.Context) error {
	if c.state.status != StatusPlaying {
		return c.reject("tick")
	}
	expired := c.timer.Tick()
	c.presenter.OnTick(c.timer.Remaining())
	if !expired {
		return nil
	}

	j := c.round.judgment()
	j.TimedOut = true
	c.logger.Debug().Str("item_id", c.round.item.ID).Msg("round timed out")
	return c.finishRound(ctx, j)
}

// Next moves feedback -> playing, or to game over when lives or rounds run out.
func (c *Controller) Next() error {
	if c.state.status != StatusFeedback {
		return c.reject("next_round")
	}
	if c.state.lives <= 0 || (c.opts.MaxRounds > 0 && c.state.roundIndex >= c.opts.MaxRounds) {
		c.timer.Reset()
		c.state.status = StatusGameOver
		c.logger.Info().
			Int("score", c.state.score).
			Int("rounds", c.state.roundIndex).
			Int("level", c.state.level).
			Msg("game over")
		c.presenter.OnStateChange(c.State())
		return nil
	}
	return c.startRound()
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	return State{
		GameID:         c.opts.GameID,
		Status:         c.state.status,
		Score:          c.state.score,
		Lives:          c.state.lives,
		RoundIndex:     c.state.roundIndex,
		Level:          c.state.level,
		Difficulty:     c.opts.Difficulty,
		TotalCorrect:   c.state.totalCorrect,
		Streak:         c.state.streak,
		ServedItemIDs:  sortedKeys(c.state.served),
		CategoriesSeen: sortedKeys(c.state.categoriesSeen),
	}
}

// Round returns a snapshot of the active or last finished round.
func (c *Controller) Round() (RoundState, bool) {
	if c.round == nil {
		return RoundState{}, false
	}
	acc := c.round.judgment()
	return RoundState{
		Item:              c.round.item,
		TimeLimit:         c.timer.Limit(),
		TimeRemaining:     c.timer.Remaining(),
		Selected:          acc.Flagged,
		Choices:           acc.Choices,
		Found:             acc.Found,
		IncorrectAttempts: acc.IncorrectAttempts,
		Submitted:         c.round.submitted,
	}, true
}

func (c *Controller) startRound() error {
	item, err := c.catalog.Draw(c.state.served)
	if errors.Is(err, content.ErrCatalogExhausted) {
		c.state.served = make(map[string]struct{})
		c.state.level++
		c.logger.Info().Int("level", c.state.level).Msg("catalog exhausted, level up")
		item, err = c.catalog.Draw(c.state.served)
	}
	if err != nil {
		return fmt.Errorf("draw item: %w", err)
	}

	limit := c.roundLimit()
	c.timer.Reset()
	if err := c.timer.Start(limit); err != nil {
		c.logger.Error().Err(err).Msg("round timer misuse")
		return fmt.Errorf("start round timer: %w", err)
	}

	c.state.served[item.ID] = struct{}{}
	if item.Category != "" {
		c.state.categoriesSeen[item.Category] = struct{}{}
	}
	c.state.roundIndex++
	c.state.status = StatusPlaying
	c.round = newRound(item)

	c.presenter.OnRoundStart(item, limit)
	c.presenter.OnStateChange(c.State())
	return nil
}

// roundLimit scales RoundTime by difficulty and tightens it per level,
// never going below MinRoundTime. Limits are whole seconds.
func (c *Controller) roundLimit() time.Duration {
	scale, ok := difficultyTimeScale[c.opts.Difficulty]
	if !ok {
		scale = 1
	}
	base := time.Duration(float64(c.opts.RoundTime) * scale)
	floor := c.opts.MinRoundTime
	if floor > base {
		floor = base
	}
	limit := base - time.Duration(c.state.level-1)*c.opts.LevelTimeStep
	if limit < floor {
		limit = floor
	}
	limit = limit.Round(timer.Step)
	if limit < timer.Step {
		limit = timer.Step
	}
	return limit
}

func (c *Controller) finishRound(ctx context.Context, j judge.Judgment) error {
	item := c.round.item
	res, err := c.evaluator.Evaluate(item, j)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", item.ID, err)
	}

	c.timer.Pause()
	remaining, limit := c.timer.Remaining(), c.timer.Limit()

	points := c.scorer.CalculateScore(item, res, remaining, limit)
	c.state.score = scoring.ApplyDelta(c.state.score, points)

	lifeLost := losesLife(item, res)
	if lifeLost && c.state.lives > 0 {
		c.state.lives--
	}
	if res.Outcome == judge.OutcomeCorrect {
		c.state.totalCorrect++
		c.state.streak++
	} else {
		c.state.streak = 0
	}

	submitted := j
	c.round.submitted = &submitted
	c.state.status = StatusFeedback

	c.logger.Debug().
		Str("item_id", item.ID).
		Str("outcome", string(res.Outcome)).
		Float64("match_ratio", res.MatchRatio).
		Int("points", points).
		Bool("life_lost", lifeLost).
		Msg("round finished")

	var earned []achievement.Achievement
	if c.achievements != nil {
		earned = c.achievements.OnEvent(ctx, c.opts.PlayerID, c.opts.GameID, achievement.Snapshot{
			Score:          c.state.score,
			TotalCorrect:   c.state.totalCorrect,
			Streak:         c.state.streak,
			Result:         res,
			TimeRemaining:  remaining,
			TimeLimit:      limit,
			CategoriesSeen: c.state.categoriesSeen,
			AllCategories:  c.catalog.Categories(),
		})
		for _, a := range earned {
			c.celebrator.Celebrate(c.opts.GameID, a)
		}
	}

	c.presenter.OnFeedback(Feedback{
		Item:         item,
		Result:       res,
		Points:       points,
		LifeLost:     lifeLost,
		Achievements: earned,
	})
	c.presenter.OnStateChange(c.State())
	return nil
}

// losesLife applies the per-kind life rule. Partial config credit is non-lethal
// whether the round ended by submit or by expiry.
func losesLife(item content.Item, res judge.Result) bool {
	switch item.Kind() {
	case content.KindBinary:
		return res.Outcome != judge.OutcomeCorrect
	case content.KindConfigSet:
		return res.MatchRatio == 0
	case content.KindDiscoverySet:
		return res.Outcome == judge.OutcomeTimeout
	default:
		return res.Counted()
	}
}

func (c *Controller) reject(action string) error {
	c.logger.Debug().Str("action", action).Str("status", string(c.state.status)).Msg("invalid transition ignored")
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, c.state.status)
}

func hasSubElement(item content.Item, id string) bool {
	for _, se := range item.SubElements {
		if se.ID == id {
			return true
		}
	}
	return item.IsDecoy(id)
}

func hasIssue(item content.Item, id string) bool {
	for _, is := range item.Verdict.Issues {
		if is.ID == id {
			return true
		}
	}
	return false
}

func hasOption(item content.Item, settingID, optionID string) bool {
	for _, s := range item.Verdict.Settings {
		if s.ID != settingID {
			continue
		}
		for _, o := range s.Options {
			if o.ID == optionID {
				return true
			}
		}
	}
	return false
}
