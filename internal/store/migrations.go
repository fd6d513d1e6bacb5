package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Tracking sessions - one per capture run
		`CREATE TABLE IF NOT EXISTS tracking_sessions (
			id TEXT PRIMARY KEY,
			backend TEXT NOT NULL,
			variant TEXT NOT NULL DEFAULT '',
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Tracking samples - one row per recorded frame
		`CREATE TABLE IF NOT EXISTS tracking_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES tracking_sessions(id) ON DELETE CASCADE,
			frame_index INTEGER NOT NULL,
			captured_at DATETIME NOT NULL,
			face_detected INTEGER NOT NULL,
			face_x INTEGER NOT NULL DEFAULT 0,
			face_y INTEGER NOT NULL DEFAULT 0,
			face_width INTEGER NOT NULL DEFAULT 0,
			face_height INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			distance REAL NOT NULL DEFAULT 0,
			gaze_x REAL NOT NULL DEFAULT 0,
			gaze_y REAL NOT NULL DEFAULT 0,
			eyes_focused INTEGER NOT NULL DEFAULT 0,
			pitch REAL NOT NULL DEFAULT 0,
			yaw REAL NOT NULL DEFAULT 0,
			roll REAL NOT NULL DEFAULT 0,
			head_moving INTEGER NOT NULL DEFAULT 0,
			shoulders_moving INTEGER NOT NULL DEFAULT 0,
			backend TEXT NOT NULL DEFAULT '',
			landmarks TEXT NOT NULL DEFAULT '[]',
			target_x REAL,
			target_y REAL
		)`,

		// Calibration sessions - one per finished calibration run
		`CREATE TABLE IF NOT EXISTS calibration_sessions (
			id TEXT PRIMARY KEY,
			valid INTEGER NOT NULL,
			point_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Calibration points - screen targets in collection order
		`CREATE TABLE IF NOT EXISTS calibration_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			calibration_id TEXT NOT NULL REFERENCES calibration_sessions(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_tracking_samples_session_id ON tracking_samples(session_id, frame_index)`,
		`CREATE INDEX IF NOT EXISTS idx_calibration_points_calibration_id ON calibration_points(calibration_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
