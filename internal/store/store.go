// Package store persists device identity and WiFi credentials across power
// loss. The backing file is a flat JSON object of string keys; writes are
// atomic per key via a temp-file rename. A corrupt file surfaces
// ErrUnavailable internally and triggers a single erase-and-recreate retry,
// mirroring how an embedded key/value partition is recovered.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Persisted keys, all under the single device namespace.
const (
	KeyIdentity = "identity"
	KeySSID     = "wifi_ssid"
	KeyPass     = "wifi_pass"
)

// ErrUnavailable means the backing file exists but cannot be decoded.
var ErrUnavailable = errors.New("store unavailable")

// Credentials is a stored WiFi join pair. An empty SSID means "no stored
// credentials" regardless of the passphrase.
type Credentials struct {
	SSID       string
	Passphrase string
}

// Store is a file-backed key/value store. Safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
	log  *logrus.Entry
}

func Open(path string, logger *logrus.Logger) *Store {
	return &Store{
		path: path,
		log:  logger.WithField("component", "store"),
	}
}

// Get returns the value for key, reporting presence separately. A corrupt
// backing file is reinitialized and the read retried once; the retried read
// of a freshly erased store reports absence.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.load()
	if errors.Is(err, ErrUnavailable) {
		if err := s.reinitialize(); err != nil {
			return "", false, err
		}
		kv, err = s.load()
	}
	if err != nil {
		return "", false, err
	}
	v, ok := kv[key]
	return v, ok, nil
}

// Set writes a single key. The whole file is rewritten atomically.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(map[string]string{key: value})
}

// Credentials loads the stored WiFi pair. ok is false when no SSID has been
// saved; an empty passphrase with a non-empty SSID is a valid open network.
func (s *Store) Credentials() (Credentials, bool, error) {
	ssid, ok, err := s.Get(KeySSID)
	if err != nil {
		return Credentials{}, false, err
	}
	if !ok || ssid == "" {
		return Credentials{}, false, nil
	}
	pass, _, err := s.Get(KeyPass)
	if err != nil {
		return Credentials{}, false, err
	}
	return Credentials{SSID: ssid, Passphrase: pass}, true, nil
}

// SaveCredentials persists a WiFi pair in one write.
func (s *Store) SaveCredentials(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(map[string]string{
		KeySSID: c.SSID,
		KeyPass: c.Passphrase,
	})
}

// Identity returns the stored device identity, or fallback when unset.
func (s *Store) Identity(fallback string) string {
	id, ok, err := s.Get(KeyIdentity)
	if err != nil || !ok || id == "" {
		return fallback
	}
	return id
}

func (s *Store) setLocked(updates map[string]string) error {
	kv, err := s.load()
	if errors.Is(err, ErrUnavailable) {
		if err := s.reinitialize(); err != nil {
			return err
		}
		kv, err = s.load()
	}
	if err != nil {
		return err
	}
	for k, v := range updates {
		kv[k] = v
	}
	return s.write(kv)
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	kv := map[string]string{}
	if len(data) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, s.path, err)
	}
	return kv, nil
}

// reinitialize erases the store back to an empty namespace.
func (s *Store) reinitialize() error {
	s.log.Warn("store corrupt, erasing and recreating")
	return s.write(map[string]string{})
}

func (s *Store) write(kv map[string]string) error {
	data, err := json.Marshal(kv)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit store: %w", err)
	}
	return nil
}
