package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
store:
  driver: SQLite
  dsn: file:forms.db
sync:
  collection: contacts
  autoSaveDelay: 750ms
  includeMetadata: false
  user: alice
server:
  addr: 127.0.0.1:9000
  originPatterns: ["localhost:*"]
log:
  level: debug
  development: true
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	no := false
	want := &Config{
		Store: StoreConfig{Driver: DriverSQLite, DSN: "file:forms.db"},
		Sync: SyncConfig{
			Collection:      "contacts",
			AutoSaveDelay:   750 * time.Millisecond,
			IncludeMetadata: &no,
			User:            "alice",
		},
		Server: ServerConfig{Addr: "127.0.0.1:9000", OriginPatterns: []string{"localhost:*"}},
		Log:    LogConfig{Level: "debug", Development: true},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Sync.Metadata() {
		t.Fatalf("metadata should be disabled")
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.Store.Driver != DriverMemory || cfg.Sync.AutoSaveDelay != time.Second || cfg.Server.Addr != ":8080" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Sync.Metadata() {
		t.Fatalf("metadata should default to enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown driver": "store:\n  driver: redis\n",
		"remote no url":  "store:\n  driver: remote\n",
		"dynamo no site": "store:\n  driver: dynamo\n",
		"negative delay": "sync:\n  autoSaveDelay: -1s\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: got %v want ErrInvalid", name, err)
		}
	}
	if _, err := Parse([]byte("store: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestLoad_Resolution(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".formsync.yaml"), []byte("store:\n  driver: sqlite\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	explicit := filepath.Join(root, "explicit.yaml")
	if err := os.WriteFile(explicit, []byte("store:\n  driver: remote\n  url: http://localhost:8080\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv(EnvConfig, "")
	cfg, err := Load("", nested)
	if err != nil {
		t.Fatalf("Load walking up: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.DSN != "formsync.db" {
		t.Fatalf("walked config: %+v", cfg.Store)
	}
	if cfg.Path != filepath.Join(root, ".formsync.yaml") {
		t.Fatalf("path: got %q", cfg.Path)
	}

	t.Setenv(EnvConfig, explicit)
	cfg, err = Load("", nested)
	if err != nil {
		t.Fatalf("Load from env: %v", err)
	}
	if cfg.Store.Driver != DriverRemote {
		t.Fatalf("env config: %+v", cfg.Store)
	}

	if _, err := Load(filepath.Join(root, "missing.yaml"), nested); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
}
