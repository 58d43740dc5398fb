package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/literacy-games/internal/session/achievement"
)

type mockQuerier struct {
	mock.Mock
}

func (m *mockQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	called := m.Called(append([]any{sql}, args...)...)
	return called.Get(0).(pgconn.CommandTag), called.Error(1)
}

func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	called := m.Called(append([]any{sql}, args...)...)
	rows, _ := called.Get(0).(pgx.Rows)
	return rows, called.Error(1)
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	called := m.Called(append([]any{sql}, args...)...)
	return called.Get(0).(pgx.Row)
}

type rowStub struct {
	values []any
	err    error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *bool:
			*v = r.values[i].(bool)
		case *int64:
			*v = r.values[i].(int64)
		}
	}
	return nil
}

func TestPostgresAwardReportsInsertedRows(t *testing.T) {
	db := new(mockQuerier)
	store := NewPostgresStore(db, nil)

	db.On("Exec", pgAwardAchievement, "p1", "phishing", "first_correct", mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	db.On("Exec", pgAwardAchievement, "p1", "phishing", "first_correct", mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil).Once()

	created, err := store.AwardAchievement(context.Background(), "p1", "phishing", achievement.FirstCorrect)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.AwardAchievement(context.Background(), "p1", "phishing", achievement.FirstCorrect)
	require.NoError(t, err)
	assert.False(t, created)
	db.AssertExpectations(t)
}

func TestPostgresHasAchievement(t *testing.T) {
	db := new(mockQuerier)
	store := NewPostgresStore(db, nil)

	db.On("QueryRow", pgHasAchievement, "p1", "ethics", "perfect_round").Return(rowStub{values: []any{true}})
	has, err := store.HasAchievement(context.Background(), "p1", "ethics", achievement.PerfectRound)
	require.NoError(t, err)
	assert.True(t, has)

	db.On("QueryRow", pgHasAchievement, "p1", "ethics", "speed_run").Return(rowStub{err: errors.New("conn reset")})
	_, err = store.HasAchievement(context.Background(), "p1", "ethics", achievement.SpeedRun)
	assert.ErrorContains(t, err, "check achievement")
}

func TestPostgresAggregate(t *testing.T) {
	db := new(mockQuerier)
	store := NewPostgresStore(db, nil)

	db.On("QueryRow", pgAggregate, "p1").Return(rowStub{values: []any{int64(3), int64(2), int64(7)}})
	summary, err := store.AggregateProgress(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, Summary{GamesCompleted: 3, QuizzesCompleted: 2, BadgesUnlocked: 7}, summary)
}

func TestPostgresLatestSnapshotMissing(t *testing.T) {
	db := new(mockQuerier)
	store := NewPostgresStore(db, nil)

	db.On("QueryRow", pgLatestSnapshot, "privacy", "weekly").Return(rowStub{err: pgx.ErrNoRows})
	_, err := store.LatestSnapshot(context.Background(), "privacy", "weekly")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
