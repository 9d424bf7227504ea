package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
gateway:
  id: "test-gateway"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "mqtt.local"
    port: 1883
    client_id: "test-client"
  qos: 1
knx:
  bridge_id: "knx"
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeTestConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.ID != "test-gateway" {
		t.Errorf("Gateway.ID = %q, want %q", cfg.Gateway.ID, "test-gateway")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.local")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, "gateway:\n  id: gw\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port default = %d, want 8080", cfg.API.Port)
	}
	if cfg.KNX.BridgeID != "knx" {
		t.Errorf("KNX.BridgeID default = %q, want %q", cfg.KNX.BridgeID, "knx")
	}
	if cfg.KNX.RecentTelegrams != 50 {
		t.Errorf("KNX.RecentTelegrams default = %d, want 50", cfg.KNX.RecentTelegrams)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level default = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("KNXGW_DATABASE_PATH", "/env/override.db")
	t.Setenv("KNXGW_JWT_SECRET", strings.Repeat("s", 40))

	cfg, err := Load(writeTestConfig(t, "database:\n  path: /file/value.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/env/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Security.JWT.Secret != strings.Repeat("s", 40) {
		t.Errorf("JWT secret not taken from environment")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing gateway id",
			mutate: func(c *Config) { c.Gateway.ID = "" },
			want:   "gateway.id",
		},
		{
			name:   "invalid qos",
			mutate: func(c *Config) { c.MQTT.QoS = 3 },
			want:   "mqtt.qos",
		},
		{
			name:   "invalid port",
			mutate: func(c *Config) { c.API.Port = 0 },
			want:   "api.port",
		},
		{
			name:   "short jwt secret",
			mutate: func(c *Config) { c.Security.JWT.Secret = "short" },
			want:   "security.jwt.secret",
		},
		{
			name:   "missing bridge id",
			mutate: func(c *Config) { c.KNX.BridgeID = "" },
			want:   "knx.bridge_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidate_EmptySecretAllowed(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with empty secret (dev mode) error = %v", err)
	}
}
