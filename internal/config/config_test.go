package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("queryforge-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.SchemaSource.Driver != "duckdb" {
		t.Fatalf("SchemaSource.Driver = %q", cfg.SchemaSource.Driver)
	}
	if cfg.History.Enabled {
		t.Fatal("History.Enabled should default to false")
	}
	if cfg.Pipeline.MaxCorrectionAttempts != 3 {
		t.Fatalf("Pipeline.MaxCorrectionAttempts = %d", cfg.Pipeline.MaxCorrectionAttempts)
	}
	if cfg.Pipeline.ExecuteRowLimit != 200 {
		t.Fatalf("Pipeline.ExecuteRowLimit = %d", cfg.Pipeline.ExecuteRowLimit)
	}
	if cfg.LLM.Model != "gpt-5" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0 {
		t.Fatalf("LLM.Temperature = %f", cfg.LLM.Temperature)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"QUERYFORGE_PROFILE": "prod"})
	cfg, err := Load("queryforge-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"QUERYFORGE_PROFILE":                 "test",
		"QUERYFORGE_SERVICE_NAME":            "queryforge-custom",
		"QUERYFORGE_HTTP_ADDR":               ":9999",
		"QUERYFORGE_HTTP_READ_TIMEOUT":       "2s",
		"QUERYFORGE_HTTP_WRITE_TIMEOUT":      "3s",
		"QUERYFORGE_LOG_LEVEL":               "error",
		"QUERYFORGE_AUTH_REQUIRED":           "true",
		"QUERYFORGE_AUTH_STATIC_KEYS":        "k1:analyst:ask",
		"QUERYFORGE_LLM_BASE_URL":            "https://api.example.com",
		"QUERYFORGE_LLM_API_KEY":             "secret-key",
		"QUERYFORGE_LLM_MODEL":               "gpt-5.2",
		"QUERYFORGE_LLM_TEMPERATURE":         "0.3",
		"QUERYFORGE_LLM_TIMEOUT":             "21s",
		"QUERYFORGE_OBJECTSTORE_ENDPOINT":    "s3.example.com",
		"QUERYFORGE_OBJECTSTORE_BUCKET":      "queryforge-prod",
		"QUERYFORGE_OBJECTSTORE_REGION":      "us-west-2",
		"QUERYFORGE_OBJECTSTORE_ACCESS_KEY":  "abc",
		"QUERYFORGE_OBJECTSTORE_SECRET_KEY":  "def",
		"QUERYFORGE_OBJECTSTORE_USE_SSL":     "true",
		"QUERYFORGE_OBJECTSTORE_PREFIX":      "forge-root",
		"QUERYFORGE_SCHEMA_DRIVER":           "postgres",
		"QUERYFORGE_SCHEMA_DSN":              "postgres://example",
		"QUERYFORGE_SCHEMA_SEARCH_SCHEMA":    "analytics",
		"QUERYFORGE_SCHEMA_MAX_OPEN_CONNS":   "42",
		"QUERYFORGE_HISTORY_ENABLED":         "true",
		"QUERYFORGE_HISTORY_DSN":             "postgres://history",
		"QUERYFORGE_HISTORY_MAX_IDLE_CONNS":  "17",
		"QUERYFORGE_MAX_CORRECTION_ATTEMPTS": "5",
		"QUERYFORGE_EXECUTE_ROW_LIMIT":       "50",
	})
	cfg, err := Load("queryforge-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "queryforge-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:analyst:ask" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.LLM.BaseURL != "https://api.example.com" {
		t.Fatalf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.APIKey != "secret-key" {
		t.Fatalf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gpt-5.2" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.3 {
		t.Fatalf("LLM.Temperature = %f", cfg.LLM.Temperature)
	}
	if cfg.LLM.Timeout != 21*time.Second {
		t.Fatalf("LLM.Timeout = %s", cfg.LLM.Timeout)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.Bucket != "queryforge-prod" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if cfg.ObjectStore.Prefix != "forge-root" {
		t.Fatalf("ObjectStore.Prefix = %q", cfg.ObjectStore.Prefix)
	}
	if cfg.SchemaSource.Driver != "postgres" {
		t.Fatalf("SchemaSource.Driver = %q", cfg.SchemaSource.Driver)
	}
	if cfg.SchemaSource.DSN != "postgres://example" {
		t.Fatalf("SchemaSource.DSN = %q", cfg.SchemaSource.DSN)
	}
	if cfg.SchemaSource.SearchSchema != "analytics" {
		t.Fatalf("SchemaSource.SearchSchema = %q", cfg.SchemaSource.SearchSchema)
	}
	if cfg.SchemaSource.MaxOpenConns != 42 {
		t.Fatalf("SchemaSource.MaxOpenConns = %d", cfg.SchemaSource.MaxOpenConns)
	}
	if !cfg.History.Enabled {
		t.Fatal("History.Enabled = false, want true")
	}
	if cfg.History.DSN != "postgres://history" {
		t.Fatalf("History.DSN = %q", cfg.History.DSN)
	}
	if cfg.History.MaxIdleConns != 17 {
		t.Fatalf("History.MaxIdleConns = %d", cfg.History.MaxIdleConns)
	}
	if cfg.Pipeline.MaxCorrectionAttempts != 5 {
		t.Fatalf("Pipeline.MaxCorrectionAttempts = %d", cfg.Pipeline.MaxCorrectionAttempts)
	}
	if cfg.Pipeline.ExecuteRowLimit != 50 {
		t.Fatalf("Pipeline.ExecuteRowLimit = %d", cfg.Pipeline.ExecuteRowLimit)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"QUERYFORGE_PROFILE": "oops"},
		{"QUERYFORGE_HTTP_READ_TIMEOUT": "NaN"},
		{"QUERYFORGE_SCHEMA_MAX_OPEN_CONNS": "oops"},
		{"QUERYFORGE_SCHEMA_DRIVER": "sqlite"},
		{"QUERYFORGE_MAX_CORRECTION_ATTEMPTS": "0"},
		{"QUERYFORGE_LLM_TEMPERATURE": "bad"},
		{"QUERYFORGE_AUTH_REQUIRED": "not-bool"},
		{"QUERYFORGE_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("queryforge-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
