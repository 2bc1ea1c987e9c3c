package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("Expected default max iterations 10, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.MaxTokens != 4096 {
		t.Errorf("Expected default max tokens 4096, got %d", cfg.Agent.MaxTokens)
	}
	if cfg.Agent.ToolTimeout != 20*time.Second {
		t.Errorf("Expected default tool timeout 20s, got %v", cfg.Agent.ToolTimeout)
	}
	if cfg.RateLimit.RequestsPerWindow != 10 || cfg.RateLimit.WindowDuration != time.Minute {
		t.Errorf("Unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9999")
	t.Setenv("AGENT_MAX_ITERATIONS", "3")
	t.Setenv("TOOL_TIMEOUT", "5s")
	t.Setenv("FRONTEND_URL", "https://app.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Expected port override, got %q", cfg.Port)
	}
	if cfg.Agent.MaxIterations != 3 {
		t.Errorf("Expected max iterations 3, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.ToolTimeout != 5*time.Second {
		t.Errorf("Expected tool timeout 5s, got %v", cfg.Agent.ToolTimeout)
	}
	if cfg.IsDevelopment() {
		t.Error("Expected production mode with a non-local frontend URL")
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error without JWT_SECRET")
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AGENT_MAX_ITERATIONS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("Expected fallback to default, got %d", cfg.Agent.MaxIterations)
	}
}

func TestIsDevelopment(t *testing.T) {
	dev := &Config{FrontendURL: "http://localhost:3000"}
	if !dev.IsDevelopment() {
		t.Error("Expected localhost frontend to mean development")
	}
	prod := &Config{FrontendURL: "https://loom.example.com"}
	if prod.IsDevelopment() {
		t.Error("Expected remote frontend to mean production")
	}
}
