package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Users (created by the presentation layer, read by the core)
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			strava_athlete_id INTEGER,
			telegram_chat_id INTEGER,
			strava_connected INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// OAuth tokens, one row per user
		`CREATE TABLE IF NOT EXISTS tokens (
			user_id TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			scope TEXT,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Activities (summary data from /athlete/activities), keyed by the
		// provider's activity id. Append-only.
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			start_date TEXT NOT NULL,
			distance REAL NOT NULL,
			moving_time INTEGER NOT NULL,
			elapsed_time INTEGER NOT NULL,
			elevation_gain REAL,
			elevation_loss REAL,
			average_speed REAL,
			max_speed REAL,
			average_heartrate REAL,
			max_heartrate REAL,
			average_cadence REAL,
			suffer_score INTEGER,
			splits_synced INTEGER DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(type)`,

		// Per-kilometre splits (from activity detail splits_metric)
		`CREATE TABLE IF NOT EXISTS splits (
			activity_id INTEGER NOT NULL,
			split INTEGER NOT NULL,
			distance REAL NOT NULL,
			moving_time INTEGER NOT NULL,
			elapsed_time INTEGER,
			elevation_diff REAL,
			average_speed REAL,
			average_heartrate REAL,
			pace_zone INTEGER,
			PRIMARY KEY (activity_id, split),
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		// Sync cursors, one row per user; in_progress is the sync lock
		`CREATE TABLE IF NOT EXISTS sync_cursors (
			user_id TEXT PRIMARY KEY,
			oldest_synced_date TEXT,
			newest_synced_date TEXT,
			total_activities_synced INTEGER NOT NULL DEFAULT 0,
			activities_with_splits INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			in_progress INTEGER NOT NULL DEFAULT 0,
			initial_sync_complete INTEGER NOT NULL DEFAULT 0,
			last_recalc_checkpoint INTEGER NOT NULL DEFAULT 0,
			new_since_recalc INTEGER NOT NULL DEFAULT 0,
			first_batch_notified INTEGER NOT NULL DEFAULT 0,
			last_sync_at TEXT,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Hiking profiles, one per user; the pace table is stored as JSON
		`CREATE TABLE IF NOT EXISTS hiking_profiles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			pace_table TEXT NOT NULL,
			legacy_paces TEXT,
			total_activities INTEGER NOT NULL DEFAULT 0,
			total_hikes INTEGER NOT NULL DEFAULT 0,
			total_distance_km REAL NOT NULL DEFAULT 0,
			total_elevation_m REAL NOT NULL DEFAULT 0,
			vertical_ability REAL NOT NULL DEFAULT 1.0,
			last_calculated_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Run profiles, one per user
		`CREATE TABLE IF NOT EXISTS run_profiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL UNIQUE,
			pace_table TEXT NOT NULL,
			legacy_paces TEXT,
			total_activities INTEGER NOT NULL DEFAULT 0,
			total_runs INTEGER NOT NULL DEFAULT 0,
			total_distance_km REAL NOT NULL DEFAULT 0,
			total_elevation_m REAL NOT NULL DEFAULT 0,
			walk_threshold_percent REAL,
			last_calculated_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Notifications; the row is durable, push delivery is best-effort
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, read)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
