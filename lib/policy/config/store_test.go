package config_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy/config"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store/bbolt"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store/valkey"
)

func TestStoreValid(t *testing.T) {
	dbPath, err := json.Marshal(filepath.Join(t.TempDir(), "captcha.db"))
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name  string
		input config.Store
		err   error
	}{
		{
			name:  "no backend",
			input: config.Store{},
			err:   config.ErrNoStoreBackend,
		},
		{
			name: "in-memory backend",
			input: config.Store{
				Backend: "memory",
			},
		},
		{
			name: "bbolt backend",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": ` + string(dbPath) + `}`),
			},
		},
		{
			name: "bbolt backend with cleanup interval",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": ` + string(dbPath) + `, "cleanup_interval": "30s"}`),
			},
		},
		{
			name: "bbolt backend bad cleanup interval",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": ` + string(dbPath) + `, "cleanup_interval": "hourly"}`),
			},
			err: bbolt.ErrBadCleanupInterval,
		},
		{
			name: "valkey backend with prefix",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{"url": "redis://valkey:6379/0", "prefix": "staging:"}`),
			},
		},
		{
			name: "valkey backend",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{"url": "redis://valkey:6379/0"}`),
			},
		},
		{
			name: "valkey backend no URL",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{}`),
			},
			err: valkey.ErrNoURL,
		},
		{
			name: "valkey backend bad URL",
			input: config.Store{
				Backend:    "valkey",
				Parameters: json.RawMessage(`{"url": "http://valkey.example"}`),
			},
			err: valkey.ErrBadURL,
		},
		{
			name: "bbolt backend no path",
			input: config.Store{
				Backend:    "bbolt",
				Parameters: json.RawMessage(`{"path": ""}`),
			},
			err: bbolt.ErrMissingPath,
		},
		{
			name: "unknown backend",
			input: config.Store{
				Backend: "taco salad",
			},
			err: config.ErrUnknownStoreBackend,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.Valid(); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("invalid error returned")
			}
		})
	}
}

func TestStoreUnknownBackendListsChoices(t *testing.T) {
	s := config.Store{Backend: "etcd"}

	err := s.Valid()
	if !errors.Is(err, config.ErrUnknownStoreBackend) {
		t.Fatalf("wanted ErrUnknownStoreBackend, got %v", err)
	}

	for _, name := range []string{"bbolt", "memory", "valkey"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("wanted %q in error message: %v", name, err)
		}
	}
}
