package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSecret(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "secret")
	if err := os.WriteFile(good, []byte("hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name    string
		value   string
		fname   string
		want    string
		wantErr bool
	}{
		{name: "unset"},
		{name: "value", value: "hunter2", want: "hunter2"},
		{name: "file", fname: good, want: "hunter2"},
		{name: "both", value: "hunter2", fname: good, wantErr: true},
		{name: "missing-file", fname: filepath.Join(dir, "nope"), wantErr: true},
		{name: "empty-file", fname: empty, wantErr: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadSecret("token-secret", tt.value, tt.fname)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wanted error: %v, got %v", tt.wantErr, err)
			}

			if string(got) != tt.want {
				t.Errorf("wanted %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseBindNetFromAddr(t *testing.T) {
	for _, tt := range []struct {
		address     string
		wantNetwork string
		wantAddress string
	}{
		{":8923", "tcp", "localhost:8923"},
		{"127.0.0.1:8923", "tcp", "127.0.0.1:8923"},
		{"http://0.0.0.0:8923", "tcp", "0.0.0.0:8923"},
		{"unix:///run/captchad.sock", "unix", "/run/captchad.sock"},
	} {
		t.Run(tt.address, func(t *testing.T) {
			network, address := parseBindNetFromAddr(tt.address)
			if network != tt.wantNetwork || address != tt.wantAddress {
				t.Errorf("wanted (%s, %s), got (%s, %s)", tt.wantNetwork, tt.wantAddress, network, address)
			}
		})
	}
}
