package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UI preferences live beside the auth record in the same state directory,
// one value per key. They are outside the session lifecycle: logout and
// corruption recovery never touch them.

var supportedLanguages = map[string]bool{
	"fr": true,
	"ar": true,
}

// Language returns the persisted UI language, or empty when unset.
func (s *FileStore) Language() string {
	val := s.readPref(LanguageKey)
	if !supportedLanguages[val] {
		return ""
	}
	return val
}

// SetLanguage persists the UI language.
func (s *FileStore) SetLanguage(lang string) error {
	lang = strings.TrimSpace(lang)
	if !supportedLanguages[lang] {
		return fmt.Errorf("unsupported language: %q", lang)
	}
	return s.writePref(LanguageKey, lang)
}

// AccentColor returns the student's persisted accent color, or empty when unset.
func (s *FileStore) AccentColor() string {
	return s.readPref(AccentColorKey)
}

// SetAccentColor persists the student's accent color.
func (s *FileStore) SetAccentColor(color string) error {
	color = strings.TrimSpace(color)
	if color == "" {
		return fmt.Errorf("accent color must not be empty")
	}
	return s.writePref(AccentColorKey, color)
}

func (s *FileStore) readPref(key string) string {
	raw, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return ""
		}
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (s *FileStore) writePref(key, value string) error {
	if err := os.WriteFile(filepath.Join(s.dir, key), []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}
