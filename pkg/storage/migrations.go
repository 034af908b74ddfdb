package storage

// Each migration is a list of statements applied in one transaction.

var sqliteMigrations = [][]string{
	// 1: readings
	{
		`CREATE TABLE IF NOT EXISTS power_records (
			id                TEXT PRIMARY KEY,
			remaining_energy  TEXT NOT NULL,
			remaining_money   TEXT NOT NULL,
			meter_room_id     TEXT NOT NULL DEFAULT '',
			room_display_name TEXT NOT NULL DEFAULT '',
			room_id           TEXT NOT NULL DEFAULT '',
			building_id       TEXT NOT NULL DEFAULT '',
			campus_id         TEXT NOT NULL DEFAULT '',
			room_number       TEXT NOT NULL DEFAULT '',
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_power_records_created_at ON power_records(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_power_records_room ON power_records(room_id)`,
	},
}

var postgresMigrations = [][]string{
	// 1: readings
	{
		`CREATE TABLE IF NOT EXISTS power_records (
			id                TEXT PRIMARY KEY,
			remaining_energy  NUMERIC(14, 4) NOT NULL,
			remaining_money   NUMERIC(14, 4) NOT NULL,
			meter_room_id     TEXT NOT NULL DEFAULT '',
			room_display_name TEXT NOT NULL DEFAULT '',
			room_id           TEXT NOT NULL DEFAULT '',
			building_id       TEXT NOT NULL DEFAULT '',
			campus_id         TEXT NOT NULL DEFAULT '',
			room_number       TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_power_records_created_at ON power_records(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_power_records_room ON power_records(room_id)`,
	},
}
