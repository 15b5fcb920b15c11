package examsession

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// Markers is the client-side record that survives a restart of the exam
// client. Started and Submitted are never both set after a successful save.
type Markers struct {
	Started         bool              `yaml:"started"`
	StartedAt       time.Time         `yaml:"start_time,omitempty"`
	DurationSeconds int               `yaml:"duration,omitempty"`
	Submitted       bool              `yaml:"submitted"`
	LastResult      *model.ExamReport `yaml:"last_result,omitempty"`
}

// MarkerStore persists Markers between runs.
type MarkerStore interface {
	Load() (Markers, error)
	Save(m Markers) error
	Clear() error
}

// FileMarkerStore keeps markers in a YAML file.
type FileMarkerStore struct {
	mu   sync.Mutex
	path string
}

// NewFileMarkerStore returns a store backed by path. The file is created on
// the first Save.
func NewFileMarkerStore(path string) *FileMarkerStore {
	return &FileMarkerStore{path: path}
}

// Load returns empty markers when the file does not exist yet.
func (s *FileMarkerStore) Load() (Markers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m Markers
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("read markers: %w", err)
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Markers{}, fmt.Errorf("decode markers: %w", err)
	}
	return m, nil
}

// Save replaces the file atomically.
func (s *FileMarkerStore) Save(m Markers) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode markers: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write markers: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace markers: %w", err)
	}
	return nil
}

func (s *FileMarkerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove markers: %w", err)
	}
	return nil
}

// MemoryMarkerStore keeps markers in memory.
type MemoryMarkerStore struct {
	mu sync.Mutex
	m  Markers
}

func NewMemoryMarkerStore(initial Markers) *MemoryMarkerStore {
	return &MemoryMarkerStore{m: initial}
}

func (s *MemoryMarkerStore) Load() (Markers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m, nil
}

func (s *MemoryMarkerStore) Save(m Markers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = m
	return nil
}

func (s *MemoryMarkerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = Markers{}
	return nil
}
