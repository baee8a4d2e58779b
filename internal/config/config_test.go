package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempNodeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadNodeConfigDefaults(t *testing.T) {
	t.Setenv("NODE_ID", "")
	t.Setenv("BROKER_HOST", "")
	t.Setenv("NODE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := LoadNodeConfig()
	if err != nil {
		t.Fatalf("LoadNodeConfig: %v", err)
	}
	if c.NodeID != 1 {
		t.Errorf("NodeID = %d, want 1", c.NodeID)
	}
	if c.BrokerHost != "localhost" {
		t.Errorf("BrokerHost = %q, want localhost", c.BrokerHost)
	}
	if *c.Trigger.ThresholdMM != defaultThresholdMM {
		t.Errorf("ThresholdMM = %d, want %d", *c.Trigger.ThresholdMM, defaultThresholdMM)
	}
	if *c.Trigger.DebounceMS != defaultDebounceMS {
		t.Errorf("DebounceMS = %d, want %d", *c.Trigger.DebounceMS, defaultDebounceMS)
	}
	if c.ClientID() != "node1" {
		t.Errorf("ClientID() = %q, want node1", c.ClientID())
	}
	if c.BrokerURI() != "tcp://localhost:1883" {
		t.Errorf("BrokerURI() = %q, want tcp://localhost:1883", c.BrokerURI())
	}
}

func TestLoadNodeConfigEnvOverrides(t *testing.T) {
	t.Setenv("NODE_ID", "42")
	t.Setenv("BROKER_HOST", "mqtt.example.com")
	t.Setenv("NODE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := LoadNodeConfig()
	if err != nil {
		t.Fatalf("LoadNodeConfig: %v", err)
	}
	if c.NodeID != 42 {
		t.Errorf("NodeID = %d, want 42", c.NodeID)
	}
	if c.ClientID() != "node42" {
		t.Errorf("ClientID() = %q, want node42", c.ClientID())
	}
}

func TestLoadNodeConfigInvalidNodeID(t *testing.T) {
	t.Setenv("NODE_ID", "not-a-number")
	if _, err := LoadNodeConfig(); err == nil {
		t.Fatal("expected error for invalid NODE_ID")
	}
}

func TestLoadNodeConfigYAMLOverridesDefaultsOnly(t *testing.T) {
	path := writeTempNodeConfig(t, "trigger:\n  threshold_mm: 500\nserial:\n  device: /dev/ttyUSB0\n")
	t.Setenv("NODE_ID", "3")
	t.Setenv("BROKER_HOST", "")
	t.Setenv("NODE_CONFIG", path)

	c, err := LoadNodeConfig()
	if err != nil {
		t.Fatalf("LoadNodeConfig: %v", err)
	}
	if *c.Trigger.ThresholdMM != 500 {
		t.Errorf("ThresholdMM = %d, want 500 (from file)", *c.Trigger.ThresholdMM)
	}
	if *c.Trigger.DebounceMS != defaultDebounceMS {
		t.Errorf("DebounceMS = %d, want default %d (unset in file)", *c.Trigger.DebounceMS, defaultDebounceMS)
	}
	if c.Serial.Device == nil || *c.Serial.Device != "/dev/ttyUSB0" {
		t.Errorf("Serial.Device = %v, want /dev/ttyUSB0", c.Serial.Device)
	}
}

func TestLoadAggregatorConfigDefaults(t *testing.T) {
	t.Setenv("BROKER_HOST", "")
	c, err := LoadAggregatorConfig()
	if err != nil {
		t.Fatalf("LoadAggregatorConfig: %v", err)
	}
	if c.ClientID() != "client" {
		t.Errorf("ClientID() = %q, want client", c.ClientID())
	}
	if c.BrokerURI() != "tcp://localhost:1883" {
		t.Errorf("BrokerURI() = %q, want tcp://localhost:1883", c.BrokerURI())
	}
}
