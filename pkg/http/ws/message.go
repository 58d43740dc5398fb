package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload wraps every payload decoding failure.
var ErrInvalidPayload = errors.New("invalid payload")

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeStartGame      = "start_game"
	TypeToggleFlag     = "toggle_flag"
	TypeChooseOption   = "choose_option"
	TypeProbeIssue     = "probe_issue"
	TypeSubmitJudgment = "submit_judgment"
	TypeNextRound      = "next_round"
	TypeRestart        = "restart"
	TypeLeaveGame      = "leave_game"
	TypePing           = "ping"

	// Server -> Client
	TypeSessionStarted      = "session_started"
	TypeStateChange         = "state_change"
	TypeRoundStart          = "round_start"
	TypeRoundTick           = "round_tick"
	TypeProbeResult         = "probe_result"
	TypeFeedback            = "feedback"
	TypeAchievementUnlocked = "achievement_unlocked"
	TypeGameOver            = "game_over"
	TypeLeaderboardUpdate   = "leaderboard_update"
	TypeError               = "error"
	TypePong                = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst interface{}) error {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return fmt.Errorf("%w: %s: empty payload", ErrInvalidPayload, m.Type)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, m.Type, err)
	}
	return nil
}

// Client Messages (incoming)

type StartGamePayload struct {
	GameID     string `json:"game_id"`
	Difficulty string `json:"difficulty,omitempty"` // easy, medium or hard (default: medium)
	MaxRounds  int    `json:"max_rounds,omitempty"` // 0 plays until lives run out
}

type ToggleFlagPayload struct {
	SubElementID string `json:"sub_element_id"`
}

type ChooseOptionPayload struct {
	SettingID string `json:"setting_id"`
	OptionID  string `json:"option_id"`
}

type ProbeIssuePayload struct {
	IssueID string `json:"issue_id"`
}

type SubmitJudgmentPayload struct {
	Answer  *bool             `json:"answer,omitempty"`
	Flagged []string          `json:"flagged,omitempty"`
	Choices map[string]string `json:"choices,omitempty"`
}

// Server Messages (outgoing)

type SessionStartedPayload struct {
	GameID     string `json:"game_id"`
	Title      string `json:"title"`
	Lives      int    `json:"lives"`
	MaxRounds  int    `json:"max_rounds"`
	Difficulty string `json:"difficulty"`
}

type StateChangePayload struct {
	GameID       string `json:"game_id"`
	Status       string `json:"status"`
	Score        int    `json:"score"`
	Lives        int    `json:"lives"`
	RoundIndex   int    `json:"round_index"`
	Level        int    `json:"level"`
	TotalCorrect int    `json:"total_correct"`
	Streak       int    `json:"streak"`
}

// RoundStartPayload carries the playable view of an item. Verdicts are never sent.
type RoundStartPayload struct {
	GameID           string        `json:"game_id"`
	RoundIndex       int           `json:"round_index"`
	ItemID           string        `json:"item_id"`
	Kind             string        `json:"kind"`
	Title            string        `json:"title"`
	Body             string        `json:"body"`
	Difficulty       string        `json:"difficulty"`
	Category         string        `json:"category"`
	Markables        []Markable    `json:"markables,omitempty"`
	Settings         []SettingView `json:"settings,omitempty"`
	IssueCount       int           `json:"issue_count,omitempty"`
	TimeLimitSeconds int           `json:"time_limit_seconds"`
}

type Markable struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type SettingView struct {
	ID      string       `json:"id"`
	Label   string       `json:"label"`
	Options []OptionView `json:"options"`
}

type OptionView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type RoundTickPayload struct {
	GameID           string `json:"game_id"`
	RoundIndex       int    `json:"round_index"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type ProbeResultPayload struct {
	IssueID string `json:"issue_id"`
	Hit     bool   `json:"hit"`
}

type FeedbackPayload struct {
	GameID       string   `json:"game_id"`
	ItemID       string   `json:"item_id"`
	Outcome      string   `json:"outcome"`
	MatchRatio   float64  `json:"match_ratio"`
	Matched      int      `json:"matched"`
	Total        int      `json:"total"`
	Points       int      `json:"points"`
	LifeLost     bool     `json:"life_lost"`
	Explanation  []string `json:"explanation,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
}

type AchievementUnlockedPayload struct {
	GameID        string `json:"game_id"`
	AchievementID string `json:"achievement_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
}

type GameOverPayload struct {
	GameID       string `json:"game_id"`
	FinalScore   int    `json:"final_score"`
	Rounds       int    `json:"rounds"`
	Level        int    `json:"level"`
	TotalCorrect int    `json:"total_correct"`
}

type LeaderboardUpdatePayload struct {
	GameID string             `json:"game_id"`
	Window string             `json:"window"`
	Top    []LeaderboardEntry `json:"top"`
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Games       int    `json:"games"`
	BestScore   int    `json:"best_score"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
