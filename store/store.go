// Package store persists client state on disk: the catalog cache under the
// user cache dir and the session and profile under the user config dir.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"showtimedb-cli/model"
)

const (
	appDir         = "showtimedb-cli"
	movieCacheTTL  = 30 * time.Minute
	maxRecentEmail = 5
)

type cacheEnvelope[T any] struct {
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source,omitempty"`
	Data      T         `json:"data"`
}

// sessionRecord holds the credential and the profile together so they are
// always written and removed as one file.
type sessionRecord struct {
	Token   string     `json:"token"`
	User    model.User `json:"user"`
	SavedAt time.Time  `json:"saved_at"`
}

type profile struct {
	RecentEmails []string `json:"recent_emails"`
}

// LoadMovieCache returns the cached catalog for source (the backend it was
// fetched from) and whether it is still fresh. A cache written for another
// source is reported as empty.
func LoadMovieCache(source string) ([]model.Movie, bool, error) {
	path, err := cachePath("movies.json")
	if err != nil {
		return nil, false, err
	}
	cache, err := loadCache[[]model.Movie](path)
	if err != nil {
		return nil, false, err
	}
	if cache.Source != source {
		return nil, false, nil
	}
	return cache.Data, time.Since(cache.UpdatedAt) <= movieCacheTTL, nil
}

func SaveMovieCache(source string, movies []model.Movie) error {
	path, err := cachePath("movies.json")
	if err != nil {
		return err
	}
	return saveCache(path, source, movies)
}

// LoadSession returns the persisted session, if any.
func LoadSession() (model.Session, bool, error) {
	path, err := configPath("session.json")
	if err != nil {
		return model.Session{}, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, err
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.Session{}, false, errors.New("invalid session format")
	}
	if record.Token == "" {
		return model.Session{}, false, nil
	}
	return model.Session{Token: record.Token, User: record.User, SavedAt: record.SavedAt}, true, nil
}

// SaveSession writes the session readable only by the current user.
func SaveSession(sess model.Session) error {
	path, err := configPath("session.json")
	if err != nil {
		return err
	}
	savedAt := sess.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	payload, err := json.MarshalIndent(sessionRecord{
		Token:   sess.Token,
		User:    sess.User,
		SavedAt: savedAt,
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, payload, 0o600)
}

// ClearSession removes the persisted session. Removing a missing file is not
// an error.
func ClearSession() error {
	path, err := configPath("session.json")
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadRecentEmails returns the emails used to sign in, most recent first.
func LoadRecentEmails() ([]string, error) {
	path, err := configPath("profile.json")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var p profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.New("invalid profile format")
	}
	return p.RecentEmails, nil
}

// LastEmail returns the most recently used email or "".
func LastEmail() string {
	emails, err := LoadRecentEmails()
	if err != nil || len(emails) == 0 {
		return ""
	}
	return emails[0]
}

func RememberEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	history, _ := LoadRecentEmails()
	next := []string{email}
	for _, existing := range history {
		if strings.EqualFold(existing, email) || existing == "" {
			continue
		}
		next = append(next, existing)
		if len(next) >= maxRecentEmail {
			break
		}
	}

	path, err := configPath("profile.json")
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(profile{RecentEmails: next}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, payload, 0o600)
}

func loadCache[T any](path string) (cacheEnvelope[T], error) {
	var cache cacheEnvelope[T]
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache, nil
		}
		return cache, err
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return cache, err
	}
	return cache, nil
}

func saveCache[T any](path string, source string, data T) error {
	cache := cacheEnvelope[T]{
		UpdatedAt: time.Now(),
		Source:    source,
		Data:      data,
	}
	payload, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, payload, 0o644)
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it into place, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func configPath(name string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, name), nil
}

func cachePath(name string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, name), nil
}
