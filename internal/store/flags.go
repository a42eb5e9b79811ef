package store

import "time"

const flagGreeted = "greeted"

// markFlag records flag for a session id. It reports false when the flag was
// already set.
func (s *Store) markFlag(sessionID, flag string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO session_flags (session_id, flag, created_at) VALUES (?, ?, ?)`,
		sessionID, flag, time.Now().UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkGreeted implements exam.GreetingGuard.
func (s *Store) MarkGreeted(sessionID string) (bool, error) {
	return s.markFlag(sessionID, flagGreeted)
}
