package store

import (
	"database/sql"
	"log/slog"
	"time"
)

// CreateAdmin inserts an admin account with a bcrypt password hash.
func (s *Store) CreateAdmin(username string, passwordHash []byte) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO admins (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(passwordHash), time.Now().UnixMilli(),
	)
	if err != nil {
		slog.Error("failed to create admin", "username", username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created admin", "id", id, "username", username)
	return id, nil
}

// AdminPasswordHash returns the stored hash, or nil when there is no such admin.
func (s *Store) AdminPasswordHash(username string) ([]byte, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM admins WHERE username = ?`, username).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(hash), nil
}

// AdminCount returns the number of admin accounts.
func (s *Store) AdminCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM admins`).Scan(&count)
	return count, err
}
