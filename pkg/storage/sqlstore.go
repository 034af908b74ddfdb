package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/powermon/pkg/model"
)

// dialect captures the SQL differences between backends.
type dialect struct {
	name        string
	placeholder func(n int) string
	// migrationsTable creates the version tracking table.
	migrationsTable string
	migrations      [][]string
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	migrationsTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	migrations: sqliteMigrations,
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	migrationsTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	migrations: postgresMigrations,
}

const readingColumns = `id, remaining_energy, remaining_money, meter_room_id, room_display_name,
	room_id, building_id, campus_id, room_number, created_at`

// sqlStore implements Storage over database/sql for any dialect.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

func (s *sqlStore) SaveReading(ctx context.Context, r *model.Reading) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}

	ph := make([]string, 10)
	for i := range ph {
		ph[i] = s.d.placeholder(i + 1)
	}
	query := fmt.Sprintf(`INSERT INTO power_records (%s) VALUES (%s)`, readingColumns, strings.Join(ph, ", "))

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.RemainingEnergy, r.RemainingMoney, r.MeterRoomID, r.RoomDisplayName,
		r.RoomID, r.BuildingID, r.CampusID, r.RoomNumber, r.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (s *sqlStore) LatestReading(ctx context.Context) (*model.Reading, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+readingColumns+" FROM power_records ORDER BY created_at DESC LIMIT 1")
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest reading: %w", err)
	}
	return r, nil
}

func (s *sqlStore) ListReadings(ctx context.Context, filter model.ReadingFilter) ([]model.Reading, error) {
	query := "SELECT " + readingColumns + " FROM power_records"
	where, args := s.buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT " + s.d.placeholder(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var readings []model.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// buildWhereClause constructs a SQL WHERE clause from a ReadingFilter.
func (s *sqlStore) buildWhereClause(filter model.ReadingFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, cond+" "+s.d.placeholder(len(args)))
	}
	if filter.RoomID != "" {
		add("room_id =", filter.RoomID)
	}
	if !filter.StartTime.IsZero() {
		add("created_at >=", filter.StartTime.UTC())
	}
	if !filter.EndTime.IsZero() {
		add("created_at <", filter.EndTime.UTC())
	}

	return strings.Join(conditions, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(sc scanner) (*model.Reading, error) {
	var r model.Reading
	if err := sc.Scan(&r.ID, &r.RemainingEnergy, &r.RemainingMoney, &r.MeterRoomID, &r.RoomDisplayName,
		&r.RoomID, &r.BuildingID, &r.CampusID, &r.RoomNumber, &r.Timestamp); err != nil {
		return nil, err
	}
	return &r, nil
}

// runMigrations applies pending schema migrations.
func runMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	if _, err := db.ExecContext(ctx, d.migrationsTable); err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(d.migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		for _, stmt := range d.migrations[i] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("run migration %d: %w", i+1, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version) VALUES ("+d.placeholder(1)+")", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
