package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Refresh.Shipments != time.Minute || cfg.Refresh.Notifications != 30*time.Second {
		t.Fatalf("unexpected refresh intervals: %+v", cfg.Refresh)
	}
	if !cfg.Mock.Latency {
		t.Fatalf("latency should be on by default")
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("mock:\n  latency: false\nrelay:\n  brokers: [\"localhost:9092\"]\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Mock.Latency {
		t.Fatalf("latency override ignored")
	}
	if cfg.Server.Addr != "127.0.0.1:8080" || cfg.Relay.Topic != "shiptrack.events" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"base path":   "server:\n  base_path: v0\n",
		"log level":   "logging:\n  level: loud\n",
		"log format":  "logging:\n  format: xml\n",
		"refresh":     "refresh:\n  shipments: 0s\n",
		"relay topic": "relay:\n  brokers: [\"b:9092\"]\n  topic: \"\"\n",
	}
	for name, doc := range tests {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("Load without file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shiptrack.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load generated default: %v", err)
	}
}
