package services

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"bodega/internal/domain"
	applog "bodega/internal/log"
	"bodega/internal/repos"
)

var (
	ErrBadCreds       = errors.New("invalid username or password")
	ErrNoSession      = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired")
)

// DefaultSessionIdle covers one register shift.
const DefaultSessionIdle = 12 * time.Hour

// AuthService logs cashiers in and out. A session that sits idle longer
// than Idle is closed on its next use.
type AuthService struct {
	Users    *repos.UserRepo
	Sessions *repos.SessionRepo
	Idle     time.Duration
	Now      func() time.Time
}

func NewAuthService(db *sqlx.DB, idle time.Duration) *AuthService {
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &AuthService{
		Users:    repos.NewUserRepo(db),
		Sessions: repos.NewSessionRepo(db),
		Idle:     idle,
		Now:      time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, sid, username, password string) (domain.User, error) {
	u, err := s.Users.ByUsername(ctx, username)
	if err != nil {
		if !domain.IsNotFound(err) {
			return domain.User{}, err
		}
		// keep timing flat for unknown usernames
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return domain.User{}, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return domain.User{}, ErrBadCreds
	}

	now := s.Now()
	if err := s.Sessions.Open(ctx, sid, u.ID, now); err != nil {
		return domain.User{}, err
	}
	if n, err := s.Sessions.PurgeIdle(ctx, now.Add(-s.Idle)); err != nil {
		applog.Warn(nil, "session.purge", err, nil)
	} else if n > 0 {
		applog.Info(nil, "session.purge", map[string]any{"closed": n})
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Sessions.Close(ctx, sid)
}

// CurrentUser resolves the cashier behind sid and refreshes its idle clock.
// It returns ErrNoSession or ErrSessionExpired when nobody is logged in.
func (s *AuthService) CurrentUser(ctx context.Context, sid string) (domain.User, error) {
	sess, err := s.Sessions.Lookup(ctx, sid)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.User{}, ErrNoSession
		}
		return domain.User{}, err
	}

	now := s.Now()
	if now.Sub(sess.Seen()) > s.Idle {
		if err := s.Sessions.Close(ctx, sid); err != nil {
			applog.Warn(nil, "session.close", err, map[string]any{"username": sess.User.Username})
		}
		applog.Security(nil, "session.expired", map[string]any{"username": sess.User.Username})
		return domain.User{}, ErrSessionExpired
	}

	if err := s.Sessions.Touch(ctx, sid, now); err != nil {
		applog.Warn(nil, "session.touch", err, map[string]any{"username": sess.User.Username})
	}
	return sess.User, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), 12)
