package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_HOST", "api.itp.local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.API.Language != "ro" {
		t.Errorf("API.Language = %q, want %q", cfg.API.Language, "ro")
	}
	if cfg.Session.Store != StoreMemory {
		t.Errorf("Session.Store = %q, want %q", cfg.Session.Store, StoreMemory)
	}
	if cfg.Session.CustomerTTL != 24*time.Hour {
		t.Errorf("Session.CustomerTTL = %v, want 24h", cfg.Session.CustomerTTL)
	}
	if cfg.Rate.RequestsPerMinute != 120 {
		t.Errorf("Rate.RequestsPerMinute = %v, want 120", cfg.Rate.RequestsPerMinute)
	}
	if cfg.OTP.ResendCooldown != time.Minute {
		t.Errorf("OTP.ResendCooldown = %v, want 1m", cfg.OTP.ResendCooldown)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("API_HOST", "api.itp.local")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_STORE", "sqlite")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Session.Store != StoreSQLite {
		t.Errorf("Session.Store = %q, want %q", cfg.Session.Store, StoreSQLite)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if len(cfg.Security.TrustedProxies) != 2 || cfg.Security.TrustedProxies[1] != "127.0.0.1" {
		t.Errorf("Security.TrustedProxies = %v", cfg.Security.TrustedProxies)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("VITE_API_HOST", "legacy.itp.local")
	t.Setenv("VITE_API_PORT", "8000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Host != "legacy.itp.local" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "legacy.itp.local")
	}
	if cfg.API.Port != 8000 {
		t.Errorf("API.Port = %d, want 8000", cfg.API.Port)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("API_HOST", "")
	t.Setenv("VITE_API_HOST", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing API_HOST")
	}
	if !strings.Contains(err.Error(), "API_HOST") {
		t.Errorf("error = %v, want mention of API_HOST", err)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("API_HOST", "api.itp.local")
	t.Setenv("API_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	t.Setenv("API_HOST", "api.itp.local")
	t.Setenv("SESSION_STORE", "postgres")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for postgres store without DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %v, want mention of DATABASE_URL", err)
	}
}

func TestValidate_UnknownStore(t *testing.T) {
	t.Setenv("API_HOST", "api.itp.local")
	t.Setenv("SESSION_STORE", "cookie")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for unknown session store")
	}
}

func TestAPIConfig_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  APIConfig
		want string
	}{
		{"custom port", APIConfig{Scheme: "http", Host: "api.local", Port: 8000, BasePath: "/api"}, "http://api.local:8000/api"},
		{"default http port", APIConfig{Scheme: "http", Host: "api.local", Port: 80, BasePath: "api/"}, "http://api.local/api"},
		{"https no base path", APIConfig{Scheme: "https", Host: "api.local", Port: 443}, "https://api.local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Database.URL = "postgres://user:pass@db/itp"
	cfg.Maps.APIKey = "pk.secret"

	s := cfg.String()
	if strings.Contains(s, "pass@db") || strings.Contains(s, "pk.secret") {
		t.Errorf("String() leaked a secret: %s", s)
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s, want masked fields", s)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := c.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
}

func mapEnv(vars map[string]string) lookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestValidate_ReportsVariableNames(t *testing.T) {
	_, err := load(mapEnv(map[string]string{
		"API_HOST":            "api.itp.local",
		"SERVER_PORT":         "70000",
		"API_SCHEME":          "ftp",
		"OTP_RESEND_COOLDOWN": "0s",
	}))
	if err == nil {
		t.Fatal("load() expected validation error")
	}
	for _, want := range []string{"SERVER_PORT", "API_SCHEME", "OTP_RESEND_COOLDOWN"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %v, want mention of %s", err, want)
		}
	}
}

func TestLoad_LogLevelCaseInsensitive(t *testing.T) {
	cfg, err := load(mapEnv(map[string]string{
		"API_HOST":   "api.itp.local",
		"LOG_LEVEL":  "WARN",
		"LOG_FORMAT": "JSON",
	}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_BlankPrimaryFallsBackToAlt(t *testing.T) {
	cfg, err := load(mapEnv(map[string]string{
		"API_HOST":      "  ",
		"VITE_API_HOST": "vite.itp.local",
	}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.API.Host != "vite.itp.local" {
		t.Errorf("API.Host = %q", cfg.API.Host)
	}
}
