package storage_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ogulcanaydogan/powermon/pkg/model"
	"github.com/ogulcanaydogan/powermon/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var readingCols = []string{
	"id", "remaining_energy", "remaining_money", "meter_room_id", "room_display_name",
	"room_id", "building_id", "campus_id", "room_number", "created_at",
}

func newMockPostgres(t *testing.T) (*storage.Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewPostgresDB(db), mock
}

func TestPostgres_SaveReading(t *testing.T) {
	p, mock := newMockPostgres(t)
	at := time.Date(2026, 1, 2, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))
	r := newReading("8.50", at)
	r.ID = "reading-1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO power_records")+`.*VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10\)`).
		WithArgs("reading-1", r.RemainingEnergy, r.RemainingMoney, "M-220407", "220407",
			"r-1", "b-22", "c-1", "407", at.UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, p.SaveReading(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestReading(t *testing.T) {
	p, mock := newMockPostgres(t)
	at := time.Date(2026, 1, 2, 1, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM power_records ORDER BY created_at DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows(readingCols).
			AddRow("reading-1", "21.3700", "8.5000", "M-1", "220407", "r-1", "b-22", "c-1", "407", at))

	r, err := p.LatestReading(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "reading-1", r.ID)
	assert.True(t, decimal.RequireFromString("8.5").Equal(r.RemainingMoney))
	assert.Equal(t, at, r.Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestReading_NotFound(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT .* FROM power_records").WillReturnRows(sqlmock.NewRows(readingCols))

	_, err := p.LatestReading(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgres_ListReadings_Placeholders(t *testing.T) {
	p, mock := newMockPostgres(t)
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM power_records WHERE room_id = $1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at DESC LIMIT $4")).
		WithArgs("r-1", start, end, 10).
		WillReturnRows(sqlmock.NewRows(readingCols).
			AddRow("a", "1", "2", "", "", "r-1", "", "", "", start.Add(2*time.Hour)).
			AddRow("b", "1", "3", "", "", "r-1", "", "", "", start.Add(time.Hour)))

	got, err := p.ListReadings(context.Background(), model.ReadingFilter{
		RoomID: "r-1", StartTime: start, EndTime: end, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS power_records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_power_records_created_at").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_power_records_room").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
		WithArgs(1).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, p.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MigrateUpToDate(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	require.NoError(t, p.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
