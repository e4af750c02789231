package valkey

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store/storetest"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestImpl(t *testing.T) {
	if os.Getenv("DONT_USE_NETWORK") != "" {
		t.Skip("test requires network egress")
		return
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	req := testcontainers.ContainerRequest{
		Image:        "valkey/valkey:8",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	valkeyC, err := testcontainers.GenericContainer(t.Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, valkeyC)
	if err != nil {
		t.Fatal(err)
	}

	endpoint, err := valkeyC.PortEndpoint(t.Context(), "6379/tcp", "redis")
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(Config{
		URL: endpoint + "/0",
	})
	if err != nil {
		t.Fatal(err)
	}

	storetest.Common(t, Factory{}, json.RawMessage(data))
}

func TestParsePrefix(t *testing.T) {
	for _, tt := range []struct {
		name string
		cfg  string
		want string
	}{
		{"default", `{"url": "redis://valkey:6379/0"}`, DefaultPrefix},
		{"custom", `{"url": "redis://valkey:6379/0", "prefix": "tenant-a:"}`, "tenant-a:"},
		{"bare", `{"url": "redis://valkey:6379/0", "prefix": ""}`, ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse(json.RawMessage(tt.cfg))
			if err != nil {
				t.Fatal(err)
			}

			if got := *cfg.Prefix; got != tt.want {
				t.Errorf("wanted prefix %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFactoryValid(t *testing.T) {
	for _, tt := range []struct {
		name string
		cfg  string
		err  error
	}{
		{name: "ok", cfg: `{"url": "redis://valkey:6379/0"}`},
		{name: "prefix", cfg: `{"url": "redis://valkey:6379/0", "prefix": "tenant-a:"}`},
		{name: "no-prefix", cfg: `{"url": "rediss://valkey:6379/0", "prefix": ""}`},
		{name: "no-url", cfg: `{}`, err: ErrNoURL},
		{name: "bad-url", cfg: `{"url": "http://valkey"}`, err: ErrBadURL},
		{name: "garbage", cfg: `}`, err: store.ErrBadConfig},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := (Factory{}).Valid(json.RawMessage(tt.cfg)); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got %v", tt.err, err)
			}
		})
	}
}
