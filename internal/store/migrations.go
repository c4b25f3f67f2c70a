package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per reroller run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK(mode IN ('general', 'target')),
			min_five_star INTEGER NOT NULL,
			targets TEXT NOT NULL DEFAULT '',
			attempts INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Attempts table - one row per evaluated frame
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			five_star_count INTEGER NOT NULL,
			required INTEGER NOT NULL,
			columns TEXT NOT NULL DEFAULT '[]',
			target_name TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL DEFAULT 0,
			almost INTEGER NOT NULL DEFAULT 0,
			message TEXT NOT NULL,
			snapshot TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_attempts_session_id ON attempts(session_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_session_number ON attempts(session_id, number)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
