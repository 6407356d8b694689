package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "APP_ENV", "ADDR", "DATABASE_URL", "JWT_SECRET",
		"JWT_EXPIRES_IN", "CLIENT_ORIGIN", "LOG_LEVEL", "LOG_FORMAT",
		"SCHEDULER_ENABLED", "NOTIFICATION_RETENTION", "ANALYTICS_RETENTION",
	} {
		t.Setenv(k, "")
	}
	// Run inside an empty directory so no stray config.yaml or .env is read.
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr: got %q", cfg.Addr)
	}
	if cfg.JWTExpiresIn != 72*time.Hour {
		t.Errorf("JWTExpiresIn: got %v", cfg.JWTExpiresIn)
	}
	if cfg.SchedulerEnabled {
		t.Error("scheduler should be off in development")
	}
	if cfg.NotificationRetention != 365*24*time.Hour {
		t.Errorf("NotificationRetention: got %v", cfg.NotificationRetention)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "eventhub.yaml")
	yml := "addr: \":9000\"\nclient_origin: https://campus.test\njwt_expires_in: 1h\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("Addr from yaml: got %q", cfg.Addr)
	}
	if cfg.ClientOrigin != "https://campus.test" {
		t.Errorf("ClientOrigin: got %q", cfg.ClientOrigin)
	}
	if cfg.JWTExpiresIn != time.Hour {
		t.Errorf("JWTExpiresIn: got %v", cfg.JWTExpiresIn)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("env should override yaml: got %q", cfg.LogLevel)
	}
}

func TestLoad_ProductionEnablesScheduler(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "prod-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() || !cfg.SchedulerEnabled {
		t.Errorf("expected production with scheduler, got %+v", cfg)
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for default secret in production")
	}
}

func TestLoad_ExplicitSchedulerOff(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SchedulerEnabled {
		t.Error("explicit SCHEDULER_ENABLED=false must win")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_EXPIRES_IN", "three days")

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
