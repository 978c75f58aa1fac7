package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"bodega/internal/domain"
)

// UserRepo reads cashier accounts.
type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// ByUsername matches case-insensitively.
func (r *UserRepo) ByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, username, password_hash
		FROM users
		WHERE LOWER(username) = LOWER(?)
	`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, &domain.NotFoundError{Kind: "user"}
	}
	return u, err
}

// Session is one row of the sessions table joined to its cashier.
type Session struct {
	ID       string `db:"id"`
	LastSeen string      `db:"last_seen"`
	User     domain.User `db:"user"`
}

// Seen parses LastSeen; a malformed value reports the zero time.
func (s Session) Seen() time.Time {
	t, err := time.Parse(time.RFC3339, s.LastSeen)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SessionRepo stores the sid cookie to cashier bindings. Timestamps are
// RFC3339 in UTC.
type SessionRepo struct{ db *sqlx.DB }

func NewSessionRepo(db *sqlx.DB) *SessionRepo { return &SessionRepo{db: db} }

// Open binds sid to a user, replacing any earlier binding of the same sid.
func (r *SessionRepo) Open(ctx context.Context, sid, userID string, now time.Time) error {
	at := now.UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(id, user_id, created_at, last_seen)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, last_seen = excluded.last_seen
	`, sid, userID, at, at)
	return err
}

// Lookup returns the session and its user. Sessions without a user are
// reported as not found.
func (r *SessionRepo) Lookup(ctx context.Context, sid string) (Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, `
		SELECT s.id, COALESCE(s.last_seen, '') AS last_seen,
		       u.id AS "user.id", u.username AS "user.username", u.password_hash AS "user.password_hash"
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?
	`, sid)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, &domain.NotFoundError{Kind: "session"}
	}
	return s, err
}

func (r *SessionRepo) Touch(ctx context.Context, sid string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_seen = ? WHERE id = ?`,
		now.UTC().Format(time.RFC3339), sid)
	return err
}

func (r *SessionRepo) Close(ctx context.Context, sid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sid)
	return err
}

// PurgeIdle deletes sessions not seen since before, and returns how many.
func (r *SessionRepo) PurgeIdle(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE last_seen IS NULL OR julianday(last_seen) < julianday(?)
	`, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
