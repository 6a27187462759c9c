package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meshtools/meshdb/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("MESHDB_CONFIG_FILE", filepath.Join(t.TempDir(), "nonexistent.yaml"))

	cfg, err := config.New("")
	if err != nil {
		t.Fatalf("config.New returned error: %v", err)
	}

	if cfg.Name != "meshdb" {
		t.Fatalf("expected default name 'meshdb', got %q", cfg.Name)
	}

	if cfg.MQTTPort != 1883 {
		t.Fatalf("expected default MQTT port 1883, got %d", cfg.MQTTPort)
	}

	if cfg.MQTTTopicPrefix != "msh" {
		t.Fatalf("expected default topic prefix 'msh', got %q", cfg.MQTTTopicPrefix)
	}

	if cfg.CaptureQueueSize != 512 {
		t.Fatalf("expected default queue size 512, got %d", cfg.CaptureQueueSize)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
name: Custom
mqtt_port: 1999
owner_node_num: 12345678
database_path: /var/lib/meshdb
`

	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("write config yaml: %v", err)
	}

	cfg, err := config.New(yamlPath)
	if err != nil {
		t.Fatalf("config.New returned error: %v", err)
	}

	if cfg.Name != "Custom" {
		t.Fatalf("expected name Custom, got %q", cfg.Name)
	}

	if cfg.MQTTPort != 1999 {
		t.Fatalf("expected mqtt_port 1999, got %d", cfg.MQTTPort)
	}

	if cfg.OwnerNodeNum != 12345678 {
		t.Fatalf("expected owner_node_num 12345678, got %d", cfg.OwnerNodeNum)
	}

	if cfg.DatabasePath != "/var/lib/meshdb" {
		t.Fatalf("expected database_path from file, got %q", cfg.DatabasePath)
	}

	if cfg.ConfigPath != yamlPath {
		t.Fatalf("expected ConfigPath %q, got %q", yamlPath, cfg.ConfigPath)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("name: FromFile\n"), 0o600); err != nil {
		t.Fatalf("write config yaml: %v", err)
	}

	t.Setenv("MESHDB_NAME", "EnvName")
	t.Setenv("MESHDB_MQTT_PORT", "2001")
	t.Setenv("MESHDB_OWNER_NODE_NUM", "4242")
	t.Setenv("MESHDB_LOG_JSON", "1")

	cfg, err := config.New(yamlPath)
	if err != nil {
		t.Fatalf("config.New returned error: %v", err)
	}

	if cfg.Name != "EnvName" {
		t.Fatalf("expected name EnvName from env, got %q", cfg.Name)
	}

	if cfg.MQTTPort != 2001 {
		t.Fatalf("expected mqtt_port 2001 from env, got %d", cfg.MQTTPort)
	}

	if cfg.OwnerNodeNum != 4242 {
		t.Fatalf("expected owner_node_num 4242 from env, got %d", cfg.OwnerNodeNum)
	}

	if !cfg.LogJSON {
		t.Fatalf("expected LogJSON true from env override")
	}
}

func TestEnvOverrideInvalidInt(t *testing.T) {
	t.Setenv("MESHDB_MQTT_PORT", "not-a-port")

	if _, err := config.New(""); err == nil {
		t.Fatalf("expected error for invalid MESHDB_MQTT_PORT")
	}
}
