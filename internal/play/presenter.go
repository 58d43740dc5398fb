package play

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/content"
	"github.com/gokatarajesh/literacy-games/internal/metrics"
	"github.com/gokatarajesh/literacy-games/internal/session"
	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
	ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

// Sink delivers outgoing messages. ws.Connection is the production sink; its
// Send never blocks.
type Sink interface {
	Send(msg ws.Message) error
}

// wsPresenter renders controller callbacks as websocket messages.
type wsPresenter struct {
	sink       Sink
	gameID     string
	state      func() session.State
	onGameOver func(session.State)
	metrics    *metrics.Play
	logger     zerolog.Logger
}

var (
	_ session.Presenter  = (*wsPresenter)(nil)
	_ session.Celebrator = (*wsPresenter)(nil)
)

func (p *wsPresenter) OnStateChange(s session.State) {
	p.send(ws.TypeStateChange, ws.StateChangePayload{
		GameID:       s.GameID,
		Status:       string(s.Status),
		Score:        s.Score,
		Lives:        s.Lives,
		RoundIndex:   s.RoundIndex,
		Level:        s.Level,
		TotalCorrect: s.TotalCorrect,
		Streak:       s.Streak,
	})
	if s.Status != session.StatusGameOver {
		return
	}

	p.send(ws.TypeGameOver, ws.GameOverPayload{
		GameID:       s.GameID,
		FinalScore:   s.Score,
		Rounds:       s.RoundIndex,
		Level:        s.Level,
		TotalCorrect: s.TotalCorrect,
	})
	if p.metrics != nil {
		p.metrics.GamesCompleted.WithLabelValues(p.gameID).Inc()
	}
	if p.onGameOver != nil {
		p.onGameOver(s)
	}
}

func (p *wsPresenter) OnRoundStart(item content.Item, limit time.Duration) {
	payload := roundView(item, limit)
	payload.GameID = p.gameID
	if p.state != nil {
		payload.RoundIndex = p.state().RoundIndex
	}
	p.send(ws.TypeRoundStart, payload)
}

func (p *wsPresenter) OnFeedback(f session.Feedback) {
	ids := make([]string, len(f.Achievements))
	for i, a := range f.Achievements {
		ids[i] = string(a.ID)
	}
	p.send(ws.TypeFeedback, ws.FeedbackPayload{
		GameID:       p.gameID,
		ItemID:       f.Item.ID,
		Outcome:      string(f.Result.Outcome),
		MatchRatio:   f.Result.MatchRatio,
		Matched:      f.Result.Matched,
		Total:        f.Result.Total,
		Points:       f.Points,
		LifeLost:     f.LifeLost,
		Explanation:  explain(f.Item),
		Achievements: ids,
	})

	if p.metrics != nil {
		p.metrics.RoundsTotal.WithLabelValues(p.gameID, string(f.Result.Outcome)).Inc()
		if f.Points > 0 {
			p.metrics.PointsTotal.WithLabelValues(p.gameID).Add(float64(f.Points))
		}
	}
}

func (p *wsPresenter) OnTick(remaining time.Duration) {
	payload := ws.RoundTickPayload{
		GameID:           p.gameID,
		RemainingSeconds: int(remaining / time.Second),
	}
	if p.state != nil {
		payload.RoundIndex = p.state().RoundIndex
	}
	p.send(ws.TypeRoundTick, payload)
}

func (p *wsPresenter) Celebrate(gameID string, a achievement.Achievement) {
	p.send(ws.TypeAchievementUnlocked, ws.AchievementUnlockedPayload{
		GameID:        gameID,
		AchievementID: string(a.ID),
		Title:         a.Title,
		Description:   a.Description,
	})
	if p.metrics != nil {
		p.metrics.AchievementsTotal.WithLabelValues(gameID, string(a.ID)).Inc()
	}
}

func (p *wsPresenter) send(msgType string, payload interface{}) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		p.logger.Error().Err(err).Msg("encode outgoing message")
		return
	}
	if err := p.sink.Send(msg); err != nil {
		p.logger.Warn().Err(err).Str("type", msgType).Msg("dropping outgoing message")
	}
}

// roundView strips everything that would reveal the verdict.
func roundView(item content.Item, limit time.Duration) ws.RoundStartPayload {
	view := ws.RoundStartPayload{
		ItemID:           item.ID,
		Kind:             string(item.Kind()),
		Title:            item.Title,
		Body:             item.Body,
		Difficulty:       string(item.Difficulty),
		Category:         item.Category,
		TimeLimitSeconds: int(limit / time.Second),
	}

	for _, m := range item.Markables() {
		view.Markables = append(view.Markables, ws.Markable{ID: m.ID, Label: m.Label})
	}

	switch item.Kind() {
	case content.KindConfigSet:
		for _, s := range item.Verdict.Settings {
			sv := ws.SettingView{ID: s.ID, Label: s.Label}
			for _, o := range s.Options {
				sv.Options = append(sv.Options, ws.OptionView{ID: o.ID, Label: o.Label})
			}
			view.Settings = append(view.Settings, sv)
		}
	case content.KindDiscoverySet:
		view.IssueCount = len(item.Verdict.Issues)
	}
	return view
}

// explain lists what the player should have spotted, shown after the round.
func explain(item content.Item) []string {
	var out []string
	switch item.Kind() {
	case content.KindBinary:
		for _, se := range item.SubElements {
			out = append(out, se.Label)
		}
	case content.KindConfigSet:
		for _, s := range item.Verdict.Settings {
			for _, o := range s.Options {
				if o.ID == s.RecommendedOptionID {
					out = append(out, fmt.Sprintf("%s: %s", s.Label, o.Label))
				}
			}
		}
	case content.KindDiscoverySet:
		for _, is := range item.Verdict.Issues {
			out = append(out, is.Label)
		}
	}
	return out
}
