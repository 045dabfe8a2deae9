package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Type != "sqlite" {
		t.Fatalf("expected sqlite store by default, got %q", cfg.Store.Type)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Fatalf("unexpected address %q", cfg.Server.Address())
	}
	if cfg.Reference.CacheTTL != 24*time.Hour {
		t.Fatalf("unexpected reference TTL %v", cfg.Reference.CacheTTL)
	}
	if cfg.Source.RetryMax != 2 {
		t.Fatalf("unexpected retry max %d", cfg.Source.RetryMax)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_TYPE", "mongodb")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("API_KEYS", " a , b,,")
	t.Setenv("SCHEDULER_REFRESH_INTERVAL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.App.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected keys %v", got)
	}
	if cfg.Scheduler.RefreshInterval != 5*time.Minute {
		t.Fatalf("unexpected interval %v", cfg.Scheduler.RefreshInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "mongo without uri", env: map[string]string{"STORE_TYPE": "mongodb"}, wantErr: true},
		{name: "unknown store", env: map[string]string{"STORE_TYPE": "postgres"}, wantErr: true},
		{name: "no reference source", env: map[string]string{"REFERENCE_DATASET_URL": "", "REFERENCE_DATASET_PATH": ""}, wantErr: true},
		{name: "memory store", env: map[string]string{"STORE_TYPE": "memory"}, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
