package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Project.Slug != "mfa-relay" {
		t.Errorf("project slug = %q, want mfa-relay", cfg.Project.Slug)
	}
	if cfg.Project.ResolveTimeout != 8*time.Second {
		t.Errorf("resolve timeout = %v, want 8s", cfg.Project.ResolveTimeout)
	}
	if cfg.Link.ContextTTL != 600*time.Second {
		t.Errorf("link context ttl = %v, want 600s", cfg.Link.ContextTTL)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("addr = %q, want 127.0.0.1:8080", cfg.Addr())
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	data := []byte(`
server:
  port: 9090
project:
  slug: custom
  fallback_id: ""
oauth:
  google:
    client_id: cid
    client_secret: secret
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Project.Slug != "custom" {
		t.Errorf("slug = %q, want custom", cfg.Project.Slug)
	}
	if cfg.Project.FallbackID != "" {
		t.Errorf("fallback id = %q, want empty", cfg.Project.FallbackID)
	}
	if cfg.OAuth.Google.ClientID != "cid" {
		t.Errorf("google client id = %q, want cid", cfg.OAuth.Google.ClientID)
	}
	// Unset keys keep their defaults.
	if cfg.DB.Path != "relay.db" {
		t.Errorf("db path = %q, want relay.db", cfg.DB.Path)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RELAY_SERVER_PORT", "7070")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070 from env", cfg.Server.Port)
	}
}
