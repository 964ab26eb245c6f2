// Package expressions holds the guild-wide list of filtered regular
// expressions and a compiled snapshot used on the message path.
package expressions

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"warden/internal/storage"

	"go.uber.org/zap"
)

const seededKey = "expressions_seeded"

type compiled struct {
	pattern string
	re      *regexp.Regexp
}

type Store struct {
	store  *storage.Store
	logger *zap.Logger

	mu       sync.RWMutex
	patterns []string
	active   []compiled
	invalid  map[string]bool
}

func New(store *storage.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{store: store, logger: logger, invalid: make(map[string]bool)}
}

// Validate reports whether the pattern compiles the way Match will use it.
func Validate(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty expression")
	}
	if _, err := compile(pattern); err != nil {
		return err
	}
	return nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// Add persists the pattern even when it does not compile; such entries are
// skipped by Match.
func (s *Store) Add(ctx context.Context, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty expression")
	}
	if err := s.store.AddExpression(ctx, pattern); err != nil {
		return fmt.Errorf("add expression: %w", err)
	}
	return s.Load(ctx)
}

// Remove deletes the pattern. Removing an absent pattern is not an error.
func (s *Store) Remove(ctx context.Context, pattern string) error {
	if err := s.store.RemoveExpression(ctx, pattern); err != nil {
		return fmt.Errorf("remove expression: %w", err)
	}
	return s.Load(ctx)
}

// List returns the stored patterns sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	patterns, err := s.store.ListExpressions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expressions: %w", err)
	}
	sort.Strings(patterns)
	return patterns, nil
}

// Seed inserts the defaults on first boot only, so an operator who removes a
// default does not see it come back after a restart.
func (s *Store) Seed(ctx context.Context, defaults []string) error {
	_, seeded, err := s.store.GetMeta(ctx, seededKey)
	if err != nil {
		return fmt.Errorf("read seed marker: %w", err)
	}
	if !seeded {
		for _, pattern := range defaults {
			if err := s.store.AddExpression(ctx, pattern); err != nil {
				return fmt.Errorf("seed expression %q: %w", pattern, err)
			}
		}
		if err := s.store.SetMeta(ctx, seededKey, "1"); err != nil {
			return fmt.Errorf("write seed marker: %w", err)
		}
		s.logger.Info("seeded default expressions", zap.Int("count", len(defaults)))
	}
	return s.Load(ctx)
}

// Load refreshes the in-memory snapshot from storage.
func (s *Store) Load(ctx context.Context) error {
	patterns, err := s.List(ctx)
	if err != nil {
		return err
	}

	active := make([]compiled, 0, len(patterns))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pattern := range patterns {
		re, err := compile(pattern)
		if err != nil {
			if !s.invalid[pattern] {
				s.invalid[pattern] = true
				s.logger.Warn("invalid filtered expression", zap.String("pattern", pattern), zap.Error(err))
			}
			continue
		}
		active = append(active, compiled{pattern: pattern, re: re})
	}
	s.patterns = patterns
	s.active = active
	return nil
}

// Match returns the first pattern that matches the normalized content.
func (s *Store) Match(content string) (string, bool) {
	if content == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.active {
		if entry.re.MatchString(content) {
			return entry.pattern, true
		}
	}
	return "", false
}

// Patterns returns the snapshot Match works from, including invalid entries.
func (s *Store) Patterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.patterns...)
}
