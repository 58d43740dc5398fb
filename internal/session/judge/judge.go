package judge

import (
	"errors"
	"fmt"

	"github.com/gokatarajesh/literacy-games/internal/content"
)

// Outcome classifies an evaluated judgment.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeTimeout   Outcome = "timeout"
)

var (
	ErrMissingAnswer  = errors.New("binary judgment needs an answer")
	ErrUnknownVerdict = errors.New("unknown verdict kind")
)

// Judgment is what the player submitted for the active item, or what had
// accumulated when the timer ran out.
type Judgment struct {
	Answer            *bool             `json:"answer,omitempty"`
	Flagged           []string          `json:"flagged,omitempty"`
	Choices           map[string]string `json:"choices,omitempty"`
	Found             []string          `json:"found,omitempty"`
	IncorrectAttempts int               `json:"incorrect_attempts,omitempty"`
	TimedOut          bool              `json:"timed_out,omitempty"`
}

// Result is the evaluation of one judgment against one item.
type Result struct {
	Outcome           Outcome `json:"outcome"`
	MatchRatio        float64 `json:"match_ratio"`
	Matched           int     `json:"matched"`
	Total             int     `json:"total"`
	IncorrectAttempts int     `json:"incorrect_attempts"`
}

// Counted reports whether the result counts as a wrong answer for life loss.
func (r Result) Counted() bool {
	return r.Outcome != OutcomeCorrect
}

// Strategy evaluates one verdict kind.
type Strategy interface {
	Evaluate(item content.Item, j Judgment) (Result, error)
}

// Evaluator routes by verdict kind to the matching Strategy.
type Evaluator struct {
	strategies map[content.VerdictKind]Strategy
}

// NewEvaluator installs the built-in strategies.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		strategies: map[content.VerdictKind]Strategy{
			content.KindBinary:       binaryStrategy{},
			content.KindConfigSet:    configStrategy{},
			content.KindDiscoverySet: discoveryStrategy{},
		},
	}
}

// Evaluate classifies j for item. Timed-out judgments keep whatever ratio had accumulated.
func (e *Evaluator) Evaluate(item content.Item, j Judgment) (Result, error) {
	s, ok := e.strategies[item.Kind()]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownVerdict, item.Kind())
	}
	res, err := s.Evaluate(item, j)
	if err != nil {
		return Result{}, err
	}
	res.IncorrectAttempts = j.IncorrectAttempts
	if j.TimedOut {
		res.Outcome = OutcomeTimeout
	}
	return res, nil
}

type binaryStrategy struct{}

func (binaryStrategy) Evaluate(item content.Item, j Judgment) (Result, error) {
	ids := make([]string, len(item.SubElements))
	for i, se := range item.SubElements {
		ids[i] = se.ID
	}
	matched := countMatches(ids, j.Flagged)

	res := Result{Outcome: OutcomeIncorrect, Matched: matched, Total: len(ids), MatchRatio: 1}
	if len(ids) > 0 {
		res.MatchRatio = float64(matched) / float64(len(ids))
	}

	if j.TimedOut {
		return res, nil
	}
	if j.Answer == nil {
		return Result{}, ErrMissingAnswer
	}
	if *j.Answer == item.Verdict.IsPositiveCase {
		res.Outcome = OutcomeCorrect
	}
	return res, nil
}

type configStrategy struct{}

func (configStrategy) Evaluate(item content.Item, j Judgment) (Result, error) {
	settings := item.Verdict.Settings
	matched := 0
	for _, s := range settings {
		if chosen, ok := j.Choices[s.ID]; ok && chosen == s.RecommendedOptionID {
			matched++
		}
	}

	res := Result{Outcome: OutcomeIncorrect, Matched: matched, Total: len(settings)}
	if len(settings) > 0 {
		res.MatchRatio = float64(matched) / float64(len(settings))
	}
	if matched == len(settings) {
		res.Outcome = OutcomeCorrect
	}
	return res, nil
}

type discoveryStrategy struct{}

func (discoveryStrategy) Evaluate(item content.Item, j Judgment) (Result, error) {
	ids := make([]string, len(item.Verdict.Issues))
	for i, is := range item.Verdict.Issues {
		ids[i] = is.ID
	}
	matched := countMatches(ids, j.Found)

	res := Result{Outcome: OutcomeIncorrect, Matched: matched, Total: len(ids)}
	if len(ids) > 0 {
		res.MatchRatio = float64(matched) / float64(len(ids))
	}
	if matched == len(ids) {
		res.Outcome = OutcomeCorrect
	}
	return res, nil
}

// countMatches counts distinct submitted ids that belong to want.
func countMatches(want, submitted []string) int {
	set := make(map[string]struct{}, len(want))
	for _, id := range want {
		set[id] = struct{}{}
	}
	n := 0
	for _, id := range submitted {
		if _, ok := set[id]; ok {
			n++
			delete(set, id)
		}
	}
	return n
}
