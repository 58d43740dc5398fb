package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/literacy-games/internal/progress"
	ws "github.com/gokatarajesh/literacy-games/pkg/http/ws"
)

type stubTop struct {
	entries map[string][]Entry // game/window -> entries
	err     error
	calls   int
}

func (s *stubTop) Top(_ context.Context, gameID, window string, limit int) ([]Entry, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	entries := s.entries[gameID+"/"+window]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

type stubSnapshots struct {
	saved []progress.Snapshot
}

func (s *stubSnapshots) InsertSnapshot(_ context.Context, snap progress.Snapshot) error {
	s.saved = append(s.saved, snap)
	return nil
}

func (s *stubSnapshots) LatestSnapshot(_ context.Context, gameID, window string) (progress.Snapshot, error) {
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].GameID == gameID && s.saved[i].Window == window {
			return s.saved[i], nil
		}
	}
	return progress.Snapshot{}, progress.ErrNoSnapshot
}

type gameIDs []string

func (g gameIDs) GameIDs() []string { return g }

type stubHub struct {
	msgs []ws.Message
}

func (h *stubHub) BroadcastAll(msg ws.Message) error {
	h.msgs = append(h.msgs, msg)
	return nil
}

func sampleEntries() []Entry {
	return []Entry{
		{PlayerID: uuid.New(), DisplayName: "Robin", Score: 420, Games: 3, BestScore: 200},
		{PlayerID: uuid.New(), DisplayName: "Sam", Score: 150, Games: 1, BestScore: 150},
	}
}

func TestWindowBucket(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, "daily:2026-10-19", windowBucket(WindowDaily, now))
	assert.Equal(t, "weekly:2026-W43", windowBucket(WindowWeekly, now))
	assert.Equal(t, "monthly:2026-10", windowBucket(WindowMonthly, now))
	assert.Equal(t, "all_time", windowBucket(WindowAllTime, now))

	svc := NewService(nil, zerolog.Nop(), ServiceOptions{})
	assert.Equal(t, "lb:phishing:daily:2026-10-19", svc.leaderboardKey("phishing", WindowDaily, now))
}

func TestToWSEntriesRanks(t *testing.T) {
	entries := sampleEntries()
	out := toWSEntries(entries)

	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Rank)
	assert.Equal(t, 2, out[1].Rank)
	assert.Equal(t, entries[0].PlayerID.String(), out[0].PlayerID)
	assert.Equal(t, 200, out[0].BestScore)
}

func TestHandleGetFromRedis(t *testing.T) {
	top := &stubTop{entries: map[string][]Entry{"phishing/weekly": sampleEntries()}}
	h := NewHTTPHandler(top, &stubSnapshots{}, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/leaderboards/{game}/{window}", h.HandleGet)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/phishing/weekly?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		GameID string                `json:"game_id"`
		Source string                `json:"source"`
		Top    []ws.LeaderboardEntry `json:"top"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "phishing", body.GameID)
	assert.Equal(t, "redis", body.Source)
	require.Len(t, body.Top, 1)
	assert.Equal(t, "Robin", body.Top[0].DisplayName)
}

func TestHandleGetFallsBackToSnapshot(t *testing.T) {
	snaps := &stubSnapshots{}
	worker := NewSnapshotWorker(
		&stubTop{entries: map[string][]Entry{"ethics/daily": sampleEntries()}},
		snaps, gameIDs{"ethics"}, time.Minute, 10, zerolog.Nop(),
	)
	worker.tick(context.Background())
	require.Len(t, snaps.saved, 1)
	assert.Equal(t, "daily", snaps.saved[0].Window)
	assert.Len(t, snaps.saved[0].SourceHash, 64)

	h := NewHTTPHandler(&stubTop{err: errors.New("redis down")}, snaps, zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/leaderboards/{game}/{window}", h.HandleGet)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/ethics/daily", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Source string                `json:"source"`
		Top    []ws.LeaderboardEntry `json:"top"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "snapshot", body.Source)
	assert.Len(t, body.Top, 2)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/privacy/daily", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, extractTop(t, rec))
}

func TestHandleGetUnknownWindow(t *testing.T) {
	h := NewHTTPHandler(&stubTop{}, nil, zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/leaderboards/{game}/{window}", h.HandleGet)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/phishing/hourly", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshotWorkerSkipsEmptyBoards(t *testing.T) {
	snaps := &stubSnapshots{}
	top := &stubTop{entries: map[string][]Entry{}}
	worker := NewSnapshotWorker(top, snaps, gameIDs{"phishing", "privacy"}, time.Minute, 10, zerolog.Nop())

	worker.tick(context.Background())
	assert.Empty(t, snaps.saved)
	assert.Equal(t, 2*len(defaultWindows), top.calls)
}

func TestBroadcasterForward(t *testing.T) {
	hub := &stubHub{}
	b := NewBroadcaster(nil, hub, "", zerolog.Nop())

	raw, err := json.Marshal(ws.LeaderboardUpdatePayload{GameID: "phishing", Window: WindowDaily, Top: toWSEntries(sampleEntries())})
	require.NoError(t, err)
	b.forward(string(raw))
	require.Len(t, hub.msgs, 1)
	assert.Equal(t, ws.TypeLeaderboardUpdate, hub.msgs[0].Type)

	b.forward(`{"game_id":"phishing","window":"hourly"}`)
	b.forward(`not json`)
	assert.Len(t, hub.msgs, 1)
}

func extractTop(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return string(body["top"])
}
