package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrAlreadySetUp        = errors.New("passcode already set")
	ErrRefreshNotFound     = errors.New("refresh token not found")
	ErrRefreshRevoked      = errors.New("refresh token revoked")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// Store keeps the owner's passcode hash and issued refresh tokens in sqlite.
// Refresh tokens are stored as SHA-256 hashes.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OwnerHash returns the passcode hash, or ok=false before first setup.
func (s *Store) OwnerHash(ctx context.Context) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT passcode_hash FROM owner WHERE id = 1").Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// SetOwner stores the passcode hash once; later calls get ErrAlreadySetUp.
func (s *Store) SetOwner(ctx context.Context, hash string) error {
	res, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO owner (id, passcode_hash) VALUES (1, ?)", hash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadySetUp
	}
	return nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// StoreRefreshToken records a refresh token hash with its expiry.
func (s *Store) StoreRefreshToken(ctx context.Context, token string, expiresAt time.Time, ttlDays int) error {
	th := hashToken(token)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, expires_at, ttl_days) VALUES (?, ?, ?)
		ON CONFLICT(token_hash) DO UPDATE SET expires_at = excluded.expires_at, ttl_days = excluded.ttl_days, revoked = 0`,
		th, expiresAt.UTC(), ttlDays,
	)
	return err
}

// ValidateRefreshToken checks the token is known, unrevoked and unexpired and
// returns its lifetime in days.
func (s *Store) ValidateRefreshToken(ctx context.Context, token string, now time.Time) (int, error) {
	var expiresAt, revoked any
	var ttlDays int
	err := s.db.QueryRowContext(ctx,
		"SELECT expires_at, revoked, ttl_days FROM refresh_tokens WHERE token_hash = ?",
		hashToken(token),
	).Scan(&expiresAt, &revoked, &ttlDays)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRefreshNotFound
	}
	if err != nil {
		return 0, err
	}

	r, ok := parseRevoked(revoked)
	if !ok {
		return 0, fmt.Errorf("unexpected revoked type: %T", revoked)
	}
	if r {
		return 0, ErrRefreshRevoked
	}
	if t, ok := parseExpiresAt(expiresAt); ok && now.After(t) {
		return 0, ErrRefreshTokenExpired
	}
	return ttlDays, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?", hashToken(token))
	return err
}

// go-sqlite3 hands DATETIME and BOOLEAN columns back in several shapes
// depending on how they were written.

func parseExpiresAt(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	}
	return time.Time{}, false
}

func parseTimeString(s string) (time.Time, bool) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseRevoked(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n != 0, true
		}
	case []byte:
		return parseRevoked(string(t))
	}
	return false, false
}
