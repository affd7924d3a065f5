package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	body := `
addr: ":9090"
push_interval_ms: 500
policy:
  death_cost: 100
  prevent_clan_mate_kills: true
  claims_enabled: true
  min_bounty: 250
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr != ":9090" {
		t.Fatalf("addr: %q", c.Addr)
	}
	if c.DataDir != "./data" {
		t.Fatalf("expected default data dir, got %q", c.DataDir)
	}
	if c.PushInterval() != 500*time.Millisecond {
		t.Fatalf("push interval: %v", c.PushInterval())
	}
	p := c.PolicySnapshot()
	if p.DeathCost != 100 || !p.PreventClanMateKills || !p.ClaimsEnabled || p.MinBounty != 250 {
		t.Fatalf("policy snapshot: %+v", p)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("addr: [oops"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
