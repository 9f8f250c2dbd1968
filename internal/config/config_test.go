package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mongo.Database != "userdb" {
		t.Errorf("database = %q, want userdb", cfg.Mongo.Database)
	}
	if cfg.Mongo.Collection != "users" {
		t.Errorf("collection = %q, want users", cfg.Mongo.Collection)
	}
	if cfg.Mongo.ConnectTimeout != 10*time.Second {
		t.Errorf("connect timeout = %s, want 10s", cfg.Mongo.ConnectTimeout)
	}
	if cfg.WebServer.Port != 5000 {
		t.Errorf("port = %d, want 5000", cfg.WebServer.Port)
	}
	if len(cfg.Logging.OutputPaths) != 1 || cfg.Logging.OutputPaths[0] != "stdout" {
		t.Errorf("output paths = %v, want [stdout]", cfg.Logging.OutputPaths)
	}
	if cfg.RabbitMQ.URL != "" {
		t.Errorf("rabbitmq url = %q, want empty", cfg.RabbitMQ.URL)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "MONGO_URI=mongodb://db:27017\nMONGO_DATABASE=lab7\nWEBSERVER_PORT=8080\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// godotenv.Load does not override existing variables; register cleanup for the ones it sets.
	for _, key := range []string{"MONGO_URI", "MONGO_DATABASE", "WEBSERVER_PORT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("uri = %q", cfg.Mongo.URI)
	}
	if cfg.Mongo.Database != "lab7" {
		t.Errorf("database = %q, want lab7", cfg.Mongo.Database)
	}
	if cfg.WebServer.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.WebServer.Port)
	}
}

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	os.Unsetenv("MONGO_URI")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error when MONGO_URI is missing")
	}
}
