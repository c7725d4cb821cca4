// Package prompts holds the phase prompt assets: embedded defaults, their
// compacted short forms, and optional YAML overrides.
package prompts

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompt keys, one per engine phase.
const (
	KeyInstruction = "instruction"
	KeyStatement   = "statement"
	KeyTheory      = "theory"
	KeyCriteria    = "criteria"
	KeyDraft       = "draft"
	KeyVerify      = "verify"
	KeyDecide      = "decide"
	KeyRepair      = "repair"
	KeyContinue    = "continue"
	KeyDecompose   = "decompose"
	KeyIntegrate   = "integrate"
	KeyRecover     = "recover"
	KeyFinal       = "final"
)

// Keys lists every known prompt key.
func Keys() []string {
	return []string{
		KeyInstruction, KeyStatement, KeyTheory, KeyCriteria, KeyDraft,
		KeyVerify, KeyDecide, KeyRepair, KeyContinue, KeyDecompose,
		KeyIntegrate, KeyRecover, KeyFinal,
	}
}

type entry struct {
	Full  string `yaml:"full"`
	Short string `yaml:"short"`
}

// Store resolves prompt texts by key.
type Store struct {
	entries map[string]entry
	logger  *slog.Logger
}

// NewStore builds a store seeded with the embedded defaults.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	entries := make(map[string]entry, len(defaultFull))
	for key, full := range defaultFull {
		entries[key] = entry{Full: full, Short: defaultShort[key]}
	}
	return &Store{entries: entries, logger: logger}
}

// Full returns the full prompt for key, or empty with a warning for an
// unknown key.
func (s *Store) Full(key string) string {
	e, ok := s.entries[key]
	if !ok {
		s.logger.Warn("unknown prompt key", "key", key)
		return ""
	}
	return e.Full
}

// Short returns the compacted prompt for key, falling back to the full text
// when no short form exists.
func (s *Store) Short(key string) string {
	e, ok := s.entries[key]
	if !ok {
		s.logger.Warn("unknown prompt key", "key", key)
		return ""
	}
	if e.Short == "" {
		s.logger.Debug("no short form, using full prompt", "key", key)
		return e.Full
	}
	return e.Short
}

// Set overrides one key programmatically. Empty fields keep the current
// value.
func (s *Store) Set(key, full, short string) {
	e := s.entries[key]
	if full != "" {
		e.Full = full
	}
	if short != "" {
		e.Short = short
	}
	s.entries[key] = e
}

// LoadFile merges overrides from a YAML file shaped as
//
//	draft:
//	  full: ...
//	  short: ...
//
// Unknown keys are rejected so typos do not silently fall back to defaults.
func (s *Store) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt overrides: %w", err)
	}
	var overrides map[string]entry
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return fmt.Errorf("parse prompt overrides %s: %w", path, err)
	}
	for key, e := range overrides {
		if _, ok := s.entries[key]; !ok {
			return fmt.Errorf("prompt overrides %s: unknown key %q", path, key)
		}
		s.Set(key, e.Full, e.Short)
	}
	s.logger.Debug("loaded prompt overrides", "path", path, "keys", len(overrides))
	return nil
}
