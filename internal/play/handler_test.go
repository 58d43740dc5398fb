package play

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/literacy-games/internal/auth"
	"github.com/gokatarajesh/literacy-games/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/literacy-games/pkg/http/errors"
	ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

func newTestHandler(t *testing.T) (*Handler, *auth.Service, testEnv) {
	t.Helper()
	env := newTestEnv(t, Config{})
	authSvc := auth.NewService(jwt.TokenConfig{AccessSecret: []byte("play-test-secret")}, zerolog.Nop())
	upgrader := &websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	h := NewHandler(env.svc, ws.NewHub(zerolog.Nop()), authSvc, upgrader, zerolog.New(io.Discard))
	return h, authSvc, env
}

func message(t *testing.T, msgType string, payload interface{}) ws.Message {
	t.Helper()
	if payload == nil {
		return ws.Message{Type: msgType}
	}
	msg, err := ws.NewMessage(msgType, payload)
	require.NoError(t, err)
	return msg
}

func lastError(t *testing.T, sink *recordingSink) ws.ErrorPayload {
	t.Helper()
	var payload ws.ErrorPayload
	sink.last(t, ws.TypeError, &payload)
	return payload
}

func TestHandleMessageRejections(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()
	player := Player{ID: uuid.New(), DisplayName: "Robin"}

	cases := []struct {
		name string
		msg  ws.Message
		code string
	}{
		{"unknown type", message(t, "dance", nil), httperrors.ErrCodeUnknownMessageType},
		{"no session", message(t, ws.TypeNextRound, nil), httperrors.ErrCodeSessionNotFound},
		{"missing payload", message(t, ws.TypeToggleFlag, nil), httperrors.ErrCodeInvalidPayload},
		{"missing game", message(t, ws.TypeStartGame, ws.StartGamePayload{}), httperrors.ErrCodeMissingField},
		{"bad difficulty", message(t, ws.TypeStartGame, ws.StartGamePayload{GameID: "phishing", Difficulty: "brutal"}), httperrors.ErrCodeInvalidPayload},
		{"unknown game", message(t, ws.TypeStartGame, ws.StartGamePayload{GameID: "chess"}), httperrors.ErrCodeUnknownGame},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			require.NoError(t, h.handleMessage(ctx, player, sink, tc.msg))
			assert.Equal(t, tc.code, lastError(t, sink).Code)
		})
	}
}

func TestHandleMessageSessionErrors(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()
	player := Player{ID: uuid.New(), DisplayName: "Robin"}
	sink := &recordingSink{}

	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeStartGame, ws.StartGamePayload{GameID: "phishing", Difficulty: "hard"})))
	var started ws.SessionStartedPayload
	sink.last(t, ws.TypeSessionStarted, &started)
	assert.Equal(t, "hard", started.Difficulty)

	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeNextRound, nil)))
	assert.Equal(t, httperrors.ErrCodeInvalidTransition, lastError(t, sink).Code)

	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeChooseOption, ws.ChooseOptionPayload{SettingID: "a", OptionID: "b"})))
	assert.Equal(t, httperrors.ErrCodeUnsupportedAction, lastError(t, sink).Code)

	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeToggleFlag, ws.ToggleFlagPayload{SubElementID: "nope"})))
	assert.Equal(t, httperrors.ErrCodeUnknownElement, lastError(t, sink).Code)

	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeSubmitJudgment, ws.SubmitJudgmentPayload{})))
	assert.Equal(t, httperrors.ErrCodeJudgmentRejected, lastError(t, sink).Code)

	no := false
	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeSubmitJudgment, ws.SubmitJudgmentPayload{Answer: &no})))
	var fb ws.FeedbackPayload
	sink.last(t, ws.TypeFeedback, &fb)
	assert.Equal(t, "incorrect", fb.Outcome)
	assert.True(t, fb.LifeLost)

	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeRestart, nil)))
	state, ok := h.service.State(player.ID)
	require.True(t, ok)
	assert.Equal(t, 3, state.Lives)
	assert.Equal(t, 0, state.Score)

	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeLeaveGame, nil)))
	_, ok = h.service.State(player.ID)
	assert.False(t, ok)
}

func TestHandleProbeReplies(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()
	player := Player{ID: uuid.New(), DisplayName: "Robin"}
	sink := &recordingSink{}

	require.NoError(t, h.handleMessage(ctx, player, sink, message(t, ws.TypeStartGame, ws.StartGamePayload{GameID: "ethics"})))

	msg := message(t, ws.TypeProbeIssue, ws.ProbeIssuePayload{IssueID: "location"})
	msg.RequestID = "req-7"
	require.NoError(t, h.handleMessage(ctx, player, sink, msg))

	var res ws.ProbeResultPayload
	reply := sink.last(t, ws.TypeProbeResult, &res)
	assert.Equal(t, "req-7", reply.RequestID)
	assert.True(t, res.Hit)
}

func TestWebSocketPlayFlow(t *testing.T) {
	h, authSvc, _ := newTestHandler(t)
	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, tokens, err := authSvc.CreateGuest(auth.GuestRequest{DisplayName: "Robin"})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + tokens.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	start := message(t, ws.TypeStartGame, ws.StartGamePayload{GameID: "phishing"})
	require.NoError(t, conn.WriteJSON(start))

	round := readUntil(t, conn, ws.TypeRoundStart)
	var payload ws.RoundStartPayload
	require.NoError(t, json.Unmarshal(round.Payload, &payload))
	assert.Equal(t, "bank-alert", payload.ItemID)

	ping := ws.Message{Type: ws.TypePing, RequestID: "p1"}
	require.NoError(t, conn.WriteJSON(ping))
	pong := readUntil(t, conn, ws.TypePong)
	assert.Equal(t, "p1", pong.RequestID)

	yes := true
	require.NoError(t, conn.WriteJSON(message(t, ws.TypeSubmitJudgment, ws.SubmitJudgmentPayload{Answer: &yes, Flagged: []string{"deadline", "sender"}})))
	fbMsg := readUntil(t, conn, ws.TypeFeedback)
	var fb ws.FeedbackPayload
	require.NoError(t, json.Unmarshal(fbMsg.Payload, &fb))
	assert.Equal(t, "correct", fb.Outcome)
	assert.Equal(t, 1.0, fb.MatchRatio)
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == ws.TypeError {
			t.Fatalf("server error: %s", msg.Payload)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}
