package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/literacy-games/internal/content"
)

func boolPtr(v bool) *bool { return &v }

func phishingItem() content.Item {
	return content.Item{
		ID:         "bank-urgent",
		Difficulty: content.DifficultyHard,
		Category:   "banking",
		Verdict:    content.BinaryVerdict(true),
		SubElements: []content.SubElement{
			{ID: "sender"}, {ID: "link"}, {ID: "urgency"},
		},
	}
}

func TestBinaryEvaluation(t *testing.T) {
	e := NewEvaluator()
	item := phishingItem()

	res, err := e.Evaluate(item, Judgment{Answer: boolPtr(true), Flagged: []string{"sender", "link", "urgency"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, res.Outcome)
	assert.Equal(t, 1.0, res.MatchRatio)

	res, err = e.Evaluate(item, Judgment{Answer: boolPtr(true), Flagged: []string{"link", "link", "bogus"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, res.Outcome)
	assert.InDelta(t, 1.0/3.0, res.MatchRatio, 1e-9)

	res, err = e.Evaluate(item, Judgment{Answer: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncorrect, res.Outcome)
	assert.True(t, res.Counted())

	_, err = e.Evaluate(item, Judgment{})
	assert.ErrorIs(t, err, ErrMissingAnswer)
}

func TestBinaryCleanItemRatioIsOne(t *testing.T) {
	item := content.Item{ID: "newsletter", Difficulty: content.DifficultyEasy, Verdict: content.BinaryVerdict(false)}
	res, err := NewEvaluator().Evaluate(item, Judgment{Answer: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, res.Outcome)
	assert.Equal(t, 1.0, res.MatchRatio)
}

func TestConfigSetEvaluation(t *testing.T) {
	settings := make([]content.Setting, 5)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		settings[i] = content.Setting{
			ID:                  id,
			Options:             []content.Option{{ID: "safe"}, {ID: "open"}},
			RecommendedOptionID: "safe",
		}
	}
	item := content.Item{ID: "profile", Difficulty: content.DifficultyMedium, Verdict: content.ConfigSetVerdict(settings...)}

	res, err := NewEvaluator().Evaluate(item, Judgment{Choices: map[string]string{
		"a": "safe", "b": "safe", "c": "safe", "d": "open",
	}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncorrect, res.Outcome)
	assert.InDelta(t, 0.6, res.MatchRatio, 1e-9)

	all := map[string]string{"a": "safe", "b": "safe", "c": "safe", "d": "safe", "e": "safe"}
	res, err = NewEvaluator().Evaluate(item, Judgment{Choices: all})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, res.Outcome)
}

func TestTimeoutKeepsAccumulatedRatio(t *testing.T) {
	item := content.Item{
		ID:         "school-photo",
		Difficulty: content.DifficultyEasy,
		Verdict:    content.DiscoveryVerdict(content.Issue{ID: "consent"}, content.Issue{ID: "location"}),
	}
	res, err := NewEvaluator().Evaluate(item, Judgment{Found: []string{"consent"}, IncorrectAttempts: 2, TimedOut: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Equal(t, 0.5, res.MatchRatio)
	assert.Equal(t, 2, res.IncorrectAttempts)
	assert.True(t, res.Counted())

	res, err = NewEvaluator().Evaluate(phishingItem(), Judgment{Flagged: []string{"sender"}, TimedOut: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.InDelta(t, 1.0/3.0, res.MatchRatio, 1e-9)
}

func TestUnknownVerdictKind(t *testing.T) {
	_, err := NewEvaluator().Evaluate(content.Item{ID: "x", Verdict: content.Verdict{Kind: "riddle"}}, Judgment{})
	assert.ErrorIs(t, err, ErrUnknownVerdict)
}
