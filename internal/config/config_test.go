package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func env(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsNeedSecret(t *testing.T) {
	err := Default().Validate()
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("Validate() = %v, want jwt_secret error", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"PLANWISE_PORT":            "9090",
		"PLANWISE_BACKEND":         "Mongo",
		"PLANWISE_MONGO_URI":       "mongodb://localhost:27017",
		"PLANWISE_JWT_SECRET":      secret,
		"PLANWISE_TOKEN_TTL":       "2h",
		"PLANWISE_COOKIE_SECURE":   "true",
		"PLANWISE_ALLOWED_ORIGINS": "app.example.com, *.example.org,",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.Backend != BackendMongo {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendMongo)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("TokenTTL = %v, want 2h", cfg.TokenTTL)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure = false, want true")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.example.org" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestApplyEnvCollectsErrors(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"PLANWISE_TOKEN_TTL":     "soon",
		"PLANWISE_COOKIE_SECURE": "maybe",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"PLANWISE_TOKEN_TTL", "PLANWISE_COOKIE_SECURE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Backend = "redis"
	cfg.Timezone = "Mars/Olympus"
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"backend", "jwt_secret", "timezone", "log_format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planwise.yaml")
	data := "port: \"7000\"\nbackend: google\njwt_secret: " + secret + "\ntoken_ttl: 30m\ntimezone: UTC\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLANWISE_CONFIG", path)
	t.Setenv("PLANWISE_PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7001" {
		t.Errorf("Port = %q, want env override %q", cfg.Port, "7001")
	}
	if cfg.Backend != BackendGoogle {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendGoogle)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("TokenTTL = %v, want 30m", cfg.TokenTTL)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location = %v", cfg.Location())
	}
}
