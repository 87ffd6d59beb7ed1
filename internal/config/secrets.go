package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Secrets is a 0600 JSON file holding the backend bearer token and the
// token clients must present to the local API. It satisfies the backend
// client's token store.
type Secrets struct {
	path string
	mu   sync.Mutex
}

type secretsFile struct {
	BackendToken string `json:"backend_token,omitempty"`
	APIToken     string `json:"api_token,omitempty"`
}

// OpenSecrets returns a handle on the secrets file at path. The file is
// created lazily on first write.
func OpenSecrets(path string) *Secrets {
	return &Secrets{path: path}
}

func (s *Secrets) read() (secretsFile, error) {
	var f secretsFile
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, fmt.Errorf("reading secrets file: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing secrets file: %w", err)
	}
	return f, nil
}

func (s *Secrets) write(f secretsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

func (s *Secrets) update(fn func(*secretsFile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.read()
	if err != nil {
		return err
	}
	fn(&f)
	return s.write(f)
}

// Token returns the stored backend token, or "" when logged out.
func (s *Secrets) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.read()
	return f.BackendToken, err
}

func (s *Secrets) SetToken(token string) error {
	return s.update(func(f *secretsFile) { f.BackendToken = token })
}

func (s *Secrets) ClearToken() error {
	return s.SetToken("")
}

// APIToken returns the local API token, generating and persisting one the
// first time it is asked for.
func (s *Secrets) APIToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.read()
	if err != nil {
		return "", err
	}
	if f.APIToken != "" {
		return f.APIToken, nil
	}
	f.APIToken = uuid.New().String()
	if err := s.write(f); err != nil {
		return "", err
	}
	return f.APIToken, nil
}
