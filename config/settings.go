package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SettingsStore holds operator settings. Delivery reads the sink URL from it
// before every send, so an update takes effect on the next capture.
type SettingsStore interface {
	SinkURL(ctx context.Context) (string, error)
	SetSinkURL(ctx context.Context, sinkURL string) error
}

// Settings is the on-disk settings document.
type Settings struct {
	SinkURL string `yaml:"sink_url"`
}

// NewSettingsStore picks a FileStore when a settings file is configured and a
// MemoryStore seeded from the environment otherwise.
func NewSettingsStore(cfg SettingsConfig) SettingsStore {
	if cfg.File != "" {
		return NewFileStore(cfg.File)
	}
	return NewMemoryStore(cfg.SinkURL)
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	sinkURL string
}

// NewMemoryStore creates a MemoryStore holding sinkURL.
func NewMemoryStore(sinkURL string) *MemoryStore {
	return &MemoryStore{sinkURL: strings.TrimSpace(sinkURL)}
}

func (s *MemoryStore) SinkURL(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sinkURL, nil
}

func (s *MemoryStore) SetSinkURL(_ context.Context, sinkURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinkURL = strings.TrimSpace(sinkURL)
	return nil
}

// FileStore keeps settings in a YAML file. Every read goes to disk so edits
// made outside the process are picked up.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) SinkURL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(st.SinkURL), nil
}

func (s *FileStore) SetSinkURL(_ context.Context, sinkURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.SinkURL = strings.TrimSpace(sinkURL)

	data, err := yaml.Marshal(&st)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("settings: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("settings: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("settings: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("settings: replace: %w", err)
	}
	return nil
}

func (s *FileStore) read() (Settings, error) {
	var st Settings
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("settings: read %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	return st, nil
}
