// Package session holds the signed-in identity for the running client.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"showtimedb-cli/logger"
	"showtimedb-cli/model"
	"showtimedb-cli/store"
)

var ErrNoSession = errors.New("not signed in")

// Persister saves the session between runs.
type Persister interface {
	Load() (model.Session, bool, error)
	Save(model.Session) error
	Clear() error
}

// Store holds at most one session. Login and Logout are the only writers.
type Store struct {
	mu        sync.RWMutex
	current   *model.Session
	persister Persister
	log       *slog.Logger
	now       func() time.Time
}

// Open restores the persisted session. A session whose token has expired is
// discarded and removed from disk.
func Open(p Persister, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	s := &Store{persister: p, log: log, now: time.Now}

	sess, ok, err := p.Load()
	if err != nil {
		return s, err
	}
	if !ok {
		return s, nil
	}
	if s.expired(sess.Token) {
		log.Info("discarding expired session", "user", sess.User.Email)
		if err := p.Clear(); err != nil {
			log.Warn("clear expired session", "error", err)
		}
		return s, nil
	}
	s.current = &sess
	return s, nil
}

// Login installs the result of a successful sign-in or registration. A
// failure to persist is logged; the session still applies to this run.
func (s *Store) Login(result model.AuthResult) error {
	if result.Token == "" {
		return errors.New("login result has no token")
	}
	sess := model.Session{Token: result.Token, User: result.User, SavedAt: s.now()}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	if err := s.persister.Save(sess); err != nil {
		s.log.Warn("persist session", "error", err)
	}
	return nil
}

// Logout forgets the credential and the profile, in memory and on disk.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return s.persister.Clear()
}

// Current returns the session unless it is missing or its token expired.
func (s *Store) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.expired(s.current.Token) {
		return model.Session{}, false
	}
	return *s.current, true
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

func (s *Store) Token() (string, error) {
	sess, ok := s.Current()
	if !ok {
		return "", ErrNoSession
	}
	return sess.Token, nil
}

// expired reports whether token is a JWT whose exp claim has passed. The
// signature is not checked: the service does that. Tokens that are not JWTs
// never expire here.
func (s *Store) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.now().Before(exp.Time)
}

type filePersister struct{}

// FilePersister stores the session in the user config directory.
func FilePersister() Persister { return filePersister{} }

func (filePersister) Load() (model.Session, bool, error) { return store.LoadSession() }
func (filePersister) Save(sess model.Session) error { return store.SaveSession(sess) }
func (filePersister) Clear() error { return store.ClearSession() }

// MemoryPersister keeps the session in memory. Used in tests and when the
// config directory is unavailable.
type MemoryPersister struct {
	mu   sync.Mutex
	sess *model.Session
	// SaveErr, when set, is returned by Save.
	SaveErr error
}

func NewMemoryPersister() *MemoryPersister { return &MemoryPersister{} }

func (m *MemoryPersister) Load() (model.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return model.Session{}, false, nil
	}
	return *m.sess, true, nil
}

func (m *MemoryPersister) Save(sess model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.sess = &sess
	return nil
}

func (m *MemoryPersister) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
