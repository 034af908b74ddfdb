package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/ogulcanaydogan/powermon/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newReading(money string, at time.Time) *model.Reading {
	return &model.Reading{
		RemainingMoney:  decimal.RequireFromString(money),
		RemainingEnergy: decimal.RequireFromString("21.37"),
		MeterRoomID:     "M-220407",
		RoomDisplayName: "220407",
		RoomID:          "r-1",
		BuildingID:      "b-22",
		CampusID:        "c-1",
		RoomNumber:      "407",
		Timestamp:       at,
	}
}

func TestSQLite_SaveReading(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	r := newReading("12.34", time.Time{})
	require.NoError(t, db.SaveReading(ctx, r))
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.Timestamp.IsZero())
}

func TestSQLite_LatestReading(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.LatestReading(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	base := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveReading(ctx, newReading("20.00", base)))
	require.NoError(t, db.SaveReading(ctx, newReading("9.99", base.Add(time.Hour))))
	require.NoError(t, db.SaveReading(ctx, newReading("15.00", base.Add(-time.Hour))))

	latest, err := db.LatestReading(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.99").Equal(latest.RemainingMoney))
	assert.True(t, decimal.RequireFromString("21.37").Equal(latest.RemainingEnergy))
	assert.Equal(t, "220407", latest.RoomDisplayName)
	assert.Equal(t, "b-22", latest.BuildingID)
	assert.True(t, base.Add(time.Hour).Equal(latest.Timestamp))
}

func TestSQLite_ListReadings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := newReading(decimal.NewFromInt(int64(30-i)).String(), base.Add(time.Duration(i)*6*time.Hour))
		if i == 4 {
			r.RoomID = "r-2"
		}
		require.NoError(t, db.SaveReading(ctx, r))
	}

	all, err := db.ListReadings(ctx, model.ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].Timestamp.After(all[4].Timestamp), "newest first")

	limited, err := db.ListReadings(ctx, model.ReadingFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	start, end := model.DayBounds(base)
	day, err := db.ListReadings(ctx, model.ReadingFilter{StartTime: start, EndTime: end})
	require.NoError(t, err)
	assert.Len(t, day, 4)

	room, err := db.ListReadings(ctx, model.ReadingFilter{RoomID: "r-2"})
	require.NoError(t, err)
	require.Len(t, room, 1)
	assert.Equal(t, "26", room[0].RemainingMoney.String())
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "powermon.db")
	ctx := context.Background()

	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.SaveReading(ctx, newReading("5", time.Now())))
	require.NoError(t, db.Close())

	db, err = storage.NewSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()

	all, err := db.ListReadings(ctx, model.ReadingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpen_SQLiteURL(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, url := range []string{"sqlite:" + filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")} {
		s, err := storage.Open(ctx, url)
		require.NoError(t, err, url)
		_, isSQLite := s.(*storage.SQLite)
		assert.True(t, isSQLite)
		require.NoError(t, s.Close())
	}
}

func TestOpen_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := storage.Open(context.Background(), "sqlite:~/.powermon/powermon.db")
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, filepath.Join(home, ".powermon", "powermon.db"))
}

func TestOpen_Empty(t *testing.T) {
	_, err := storage.Open(context.Background(), "")
	assert.Error(t, err)
}
