package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HandshakeTimeout != 10*time.Second {
		t.Errorf("expected default handshake timeout, got %v", cfg.HandshakeTimeout)
	}
	if !cfg.Reconnect {
		t.Error("expected reconnect on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "gateway.toml", `
url = "wss://gateway.example.com"
handshake_timeout = "3s"
send_rate = 1.5
debug = true

[backoff]
initial_delay = "100ms"
max_delay = "5s"

[checkpoint]
store = "file"
path = "/tmp/checkpoints.json"
key = "bot"
`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "wss://gateway.example.com" {
		t.Errorf("unexpected url %q", cfg.URL)
	}
	if cfg.HandshakeTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %v", cfg.HandshakeTimeout)
	}
	if cfg.Backoff.InitialDelay != 100*time.Millisecond || cfg.Backoff.MaxDelay != 5*time.Second {
		t.Errorf("unexpected backoff %+v", cfg.Backoff)
	}
	// untouched keys keep their defaults
	if cfg.Backoff.Multiplier != 2 {
		t.Errorf("expected default multiplier, got %v", cfg.Backoff.Multiplier)
	}
	if cfg.Checkpoint.Store != StoreFile || cfg.Checkpoint.Key != "bot" {
		t.Errorf("unexpected checkpoint %+v", cfg.Checkpoint)
	}

	g := cfg.Gateway()
	if g.SendRate != 1.5 || !g.Debug || g.HandshakeTimeout != 3*time.Second {
		t.Errorf("unexpected gateway config %+v", g)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "gateway.toml", `url = "wss://from-file.example.com"`)
	t.Setenv("GATEWAY_URL", "wss://from-env.example.com")
	t.Setenv("GATEWAY_BACKOFF_MULTIPLIER", "3")
	t.Setenv("GATEWAY_CHECKPOINT_STORE", " Redis ")
	t.Setenv("GATEWAY_CHECKPOINT_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "wss://from-env.example.com" {
		t.Errorf("env must win over file, got %q", cfg.URL)
	}
	if cfg.Backoff.Multiplier != 3 {
		t.Errorf("expected multiplier 3, got %v", cfg.Backoff.Multiplier)
	}
	if cfg.Checkpoint.Store != StoreRedis || cfg.Checkpoint.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected checkpoint %+v", cfg.Checkpoint)
	}
}

func TestDotEnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "GATEWAY_TOKEN=from-dotenv\n")
	t.Setenv("GATEWAY_TOKEN", "")
	os.Unsetenv("GATEWAY_TOKEN")

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Token != "from-dotenv" {
		t.Errorf("expected token from .env, got %q", cfg.Token)
	}
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	if _, err := Load("", filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env must be ignored, got %v", err)
	}
}

func TestMissingTOMLFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml"), ""); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*File)
		ok     bool
	}{
		{"defaults", func(*File) {}, true},
		{"bad url", func(f *File) { f.URL = "gateway.example.com" }, false},
		{"negative timeout", func(f *File) { f.HandshakeTimeout = -1 }, false},
		{"file store without path", func(f *File) { f.Checkpoint.Store = StoreFile }, false},
		{"redis without addr", func(f *File) { f.Checkpoint.Store = StoreRedis }, false},
		{"unknown store", func(f *File) { f.Checkpoint.Store = "etcd" }, false},
		{"memory store", func(f *File) { f.Checkpoint.Store = StoreMemory }, true},
		{"store without key", func(f *File) { f.Checkpoint.Store = StoreMemory; f.Checkpoint.Key = "" }, false},
	}
	for _, tc := range cases {
		f := Default()
		tc.mutate(&f)
		err := f.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%s: Validate() = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := Checkpoint{}.OpenStore(ctx)
	if err != nil || store != nil {
		t.Errorf("expected no store, got %v %v", store, err)
	}
	closeFn()

	store, closeFn, err = Checkpoint{Store: StoreFile, Path: filepath.Join(t.TempDir(), "cp.json")}.OpenStore(ctx)
	if err != nil || store == nil {
		t.Fatalf("expected file store, got %v %v", store, err)
	}
	closeFn()

	if _, _, err := (Checkpoint{Store: "etcd"}).OpenStore(ctx); err == nil {
		t.Error("expected error for unknown store")
	}
}
