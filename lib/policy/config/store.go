package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store"
	_ "github.com/MelihcanSimsek/CaptchaGenerator/lib/store/all"
)

var (
	ErrNoStoreBackend      = errors.New("config.Store: no backend defined")
	ErrUnknownStoreBackend = errors.New("config.Store: unknown backend")
)

// Store selects the storage backend used for rate limit counters. The
// parameters block is handed to the backend's factory untouched.
type Store struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (s *Store) Valid() error {
	if s.Backend == "" {
		return ErrNoStoreBackend
	}

	fac, ok := store.Get(s.Backend)
	if !ok {
		return fmt.Errorf("%w: %q, wanted one of %v", ErrUnknownStoreBackend, s.Backend, store.Backends())
	}

	if err := fac.Valid(s.Parameters); err != nil {
		return fmt.Errorf("store backend %s: %w", s.Backend, err)
	}

	return nil
}
