package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-jwt-secret-key")
	t.Setenv("CONFIG_FILE", "")
}

func TestLoad_Success(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.JWT.Secret != "test-jwt-secret-key" {
		t.Errorf("JWT.Secret = %q, want %q", cfg.JWT.Secret, "test-jwt-secret-key")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if cfg.Push.Provider != ProviderExpo {
		t.Errorf("Push.Provider = %q, want %q", cfg.Push.Provider, ProviderExpo)
	}
	if cfg.Push.AppTitle != "Mise" {
		t.Errorf("Push.AppTitle = %q, want %q", cfg.Push.AppTitle, "Mise")
	}
	if cfg.Push.Timeout != 10*time.Second {
		t.Errorf("Push.Timeout = %v, want %v", cfg.Push.Timeout, 10*time.Second)
	}
	if cfg.Push.MaxBatch != 0 {
		t.Errorf("Push.MaxBatch = %d, want 0 (single call)", cfg.Push.MaxBatch)
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing JWT_SECRET, got nil")
	}
}

func TestLoad_InvalidDBPort(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("DB_PORT", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid DB_PORT, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("PUSH_TIMEOUT", "soon")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid PUSH_TIMEOUT, got nil")
	}
}

func TestLoad_ProviderValidation(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		credentials string
		wantErr     bool
	}{
		{"expo", "expo", "", false},
		{"uppercase expo", "EXPO", "", false},
		{"fcm without credentials", "fcm", "", true},
		{"fcm with credentials", "fcm", "/etc/firebase.json", false},
		{"unknown", "apns", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv("PUSH_PROVIDER", tt.provider)
			t.Setenv("FIREBASE_CREDENTIALS_FILE", tt.credentials)

			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_ConfigFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mise.yaml")
	content := "JWT_SECRET: from-file\nPORT: \"9000\"\nSCHEDULER_TIMES: \"08:30, 19:00\"\nREDIS_ENABLED: \"true\"\nDB_PORT: \"6543\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.JWT.Secret != "from-file" {
		t.Errorf("JWT.Secret = %q, want %q", cfg.JWT.Secret, "from-file")
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("Server.Port = %q, want env override %q", cfg.Server.Port, "7000")
	}
	if cfg.Database.Port != 6543 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 6543)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled = false, want true from file")
	}
	if len(cfg.Scheduler.ScheduleTimes) != 2 || cfg.Scheduler.ScheduleTimes[1] != "19:00" {
		t.Errorf("Scheduler.ScheduleTimes = %v, want [08:30 19:00]", cfg.Scheduler.ScheduleTimes)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing config file, got nil")
	}
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"YES", false, true},
		{"1", false, true},
		{"false", true, false},
		{"no", true, false},
		{"maybe", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MISE_TEST_BOOL", tt.value)
			got := envSource{}.getBool("MISE_TEST_BOOL", tt.def)
			if got != tt.want {
				t.Errorf("getBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestConnectionString(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "mise", SSLMode: "require"}
	want := "host=db port=5432 user=u password=p dbname=mise sslmode=require"
	if got := c.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
