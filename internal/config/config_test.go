package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefaults(t *testing.T) {
	t.Setenv("STORE", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.KafkaTopic != "thrive.activity" {
		t.Errorf("topic: got %q", cfg.KafkaTopic)
	}
	if cfg.PublicTaskLimit != 10 {
		t.Errorf("public limit: got %d", cfg.PublicTaskLimit)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("brokers should be empty, got %v", cfg.KafkaBrokers)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STORE", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://localhost/thrive")
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PUBLIC_TASK_LIMIT", "25")
	t.Setenv("TIMEZONE", "Europe/Berlin")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StorePostgres || cfg.Port != "9090" || cfg.PublicTaskLimit != 25 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !slices.Equal(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("brokers: got %v", cfg.KafkaBrokers)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Errorf("location: %v %v", loc, err)
	}
}

func TestYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thrive.yaml")
	data := "store: memory\nport: \"7000\"\nkafka_brokers:\n  - a:9092\n  - b:9092\npublic_task_limit: 5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.Port != "7000" || cfg.PublicTaskLimit != 5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !slices.Equal(cfg.KafkaBrokers, []string{"a:9092", "b:9092"}) {
		t.Errorf("brokers: got %v", cfg.KafkaBrokers)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thrive.yaml")
	if err := os.WriteFile(path, []byte("store: memory\nport: \"7000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "7100" {
		t.Errorf("env should override file, got %q", cfg.Port)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE": "postgres", "DATABASE_URL": ""}},
		{"unknown store", map[string]string{"STORE": "mongo"}},
		{"bad limit", map[string]string{"STORE": "memory", "PUBLIC_TASK_LIMIT": "0"}},
		{"bad timezone", map[string]string{"STORE": "memory", "TIMEZONE": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("explicit missing file should fail")
	}
}
