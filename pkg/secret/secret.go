package secret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Number of random bytes behind a secret; hex doubles it.
const SECRET_BYTES = 16

// Store keeps the per-user secret that proves ownership of uploads.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// GetOrCreate returns the stored secret, writing a fresh one first if the
// file does not exist yet. Two processes creating it at once both end up
// with whatever the last writer left.
func (s *Store) GetOrCreate() (string, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		secret, err := Generate()
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return "", fmt.Errorf("creating secret directory: %w", err)
		}
		if err := os.WriteFile(s.path, []byte(secret), 0o600); err != nil {
			return "", fmt.Errorf("writing secret: %w", err)
		}
		log.Printf("Created a new secret at %s", s.path)
	} else if err != nil {
		return "", fmt.Errorf("checking secret: %w", err)
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	secret := strings.TrimSpace(string(content))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", s.path)
	}
	return secret, nil
}

// Generate returns SECRET_BYTES random bytes, hex encoded.
func Generate() (string, error) {
	b := make([]byte, SECRET_BYTES)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
