package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/educonnect/educonnect-client/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Storage keys, kept identical to the persisted layout of the web client.
const (
	AuthKey        = "educonnect_auth"
	LanguageKey    = "educonnect_language"
	AccentColorKey = "student_accent_color"
)

// Role is the account type carried in the session record
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// User identifies the authenticated account
type User struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required"`
	Role  Role   `json:"role" validate:"required,oneof=student teacher"`
}

// Record is the sole persisted authentication entity. It is either entirely
// absent or has a well-formed user and a non-empty access token; anything
// else is corrupt and discarded at read time.
type Record struct {
	User                 User   `json:"user"`
	AccessToken          string `json:"accessToken" validate:"required"`
	RefreshToken         string `json:"refreshToken,omitempty"`
	VerificationRequired bool   `json:"verificationRequired,omitempty"`
}

// Patch carries the fields a partial update may touch. Nil pointers leave the
// current value in place.
type Patch struct {
	AccessToken          *string
	RefreshToken         *string
	VerificationRequired *bool
}

// Store abstracts session record persistence so the request client,
// upload client and restorer share one injected handle.
type Store interface {
	// Get reads the persisted record. Returns nil if absent or corrupt,
	// never errors.
	Get() *Record
	// Set persists the full record, overwriting any previous value.
	Set(rec *Record) error
	// Patch shallow-merges fields into the current record and writes it
	// back. No-op if no record exists.
	Patch(p Patch) error
	// Clear removes the persisted record entirely.
	Clear() error
}

var validate = validator.New()

// Validate reports whether the record satisfies the session shape invariant.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("nil record")
	}
	return validate.Struct(r)
}

// FileStore persists the session record as a JSON file in a state directory,
// the durable-storage equivalent of the browser's key/value store.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the state directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) authPath() string {
	return filepath.Join(s.dir, AuthKey)
}

// Get reads the persisted record. A missing file means no session; a file
// that fails to parse or to validate is corrupt and is removed so every
// later read sees a clean absent state.
func (s *FileStore) Get() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *FileStore) readLocked() *Record {
	raw, err := os.ReadFile(s.authPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to read session record", zap.Error(err))
		}
		return nil
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.Warn("Discarding corrupt session record", zap.Error(err))
		s.removeLocked()
		return nil
	}
	if err := rec.Validate(); err != nil {
		logger.Warn("Discarding malformed session record", zap.Error(err))
		s.removeLocked()
		return nil
	}

	return &rec
}

// Set persists the full record, overwriting any previous value.
func (s *FileStore) Set(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(rec)
}

// Patch shallow-merges fields into the current record and writes it back.
// No-op when no record is stored.
func (s *FileStore) Patch(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.readLocked()
	if rec == nil {
		return nil
	}

	if p.AccessToken != nil {
		rec.AccessToken = *p.AccessToken
	}
	if p.RefreshToken != nil {
		rec.RefreshToken = *p.RefreshToken
	}
	if p.VerificationRequired != nil {
		rec.VerificationRequired = *p.VerificationRequired
	}

	return s.writeLocked(rec)
}

// Clear removes the persisted record entirely.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked()
	return nil
}

// writeLocked replaces the record file atomically so a crash mid-write can
// never leave a partial record behind.
func (s *FileStore) writeLocked(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize session record: %w", err)
	}

	tmp := s.authPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}
	if err := os.Rename(tmp, s.authPath()); err != nil {
		return fmt.Errorf("failed to persist session record: %w", err)
	}

	return nil
}

func (s *FileStore) removeLocked() {
	if err := os.Remove(s.authPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove session record", zap.Error(err))
	}
}
