package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("want error without DATABASE_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/ayushmap")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8000" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.GroqModel != "llama-3.3-70b-versatile" {
		t.Errorf("groq model = %q", cfg.GroqModel)
	}
	if cfg.ICDAPIVersion != "v2" {
		t.Errorf("icd api version = %q", cfg.ICDAPIVersion)
	}
	if cfg.WorkerPoolSize != 6 {
		t.Errorf("worker pool size = %d", cfg.WorkerPoolSize)
	}
	if cfg.RunTimeout() != 60*time.Second {
		t.Errorf("run timeout = %s", cfg.RunTimeout())
	}
	if !cfg.IsDev() {
		t.Error("ENV=development should report IsDev")
	}
}

func TestLoadRequiresJWTSecretOutsideDev(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/ayushmap")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("want error without JWT_SECRET in production")
	}

	t.Setenv("JWT_SECRET", "super-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IsDev() {
		t.Error("ENV=production should not report IsDev")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/ayushmap")
	t.Setenv("ENV", "development")
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_POOL_SIZE", "3")
	t.Setenv("PIPELINE_TIMEOUT_SECONDS", "15")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.WorkerPoolSize != 3 {
		t.Errorf("worker pool size = %d", cfg.WorkerPoolSize)
	}
	if cfg.RunTimeout() != 15*time.Second {
		t.Errorf("run timeout = %s", cfg.RunTimeout())
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("cors origins = %v", cfg.CORSOrigins)
	}
}
