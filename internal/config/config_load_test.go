package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// Helper function to set os.Args for testing
func setArgs(args []string) {
	os.Args = args
}

// Helper function to clear environment variables
func clearEnvVars() {
	for _, key := range flagKeys {
		os.Unsetenv("PVP_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
	}
}

// withArgs runs LoadFromFlags against a clean flag set and environment.
func withArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	})

	setArgs(append([]string{"mcp-pvp-extractor"}, args...))
	resetFlags()
	return LoadFromFlags()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	clearEnvVars()
	cfg, err := withArgs(t)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.OCR.DPI != 200 {
		t.Errorf("LoadFromFlags() OCR.DPI = %v, want %v", cfg.OCR.DPI, 200)
	}
	if cfg.OCR.MinTextLength != 60 {
		t.Errorf("LoadFromFlags() OCR.MinTextLength = %v, want %v", cfg.OCR.MinTextLength, 60)
	}
	if cfg.AI.ExcerptLimit != 4000 {
		t.Errorf("LoadFromFlags() AI.ExcerptLimit = %v, want %v", cfg.AI.ExcerptLimit, 4000)
	}
	if cfg.AI.Enabled() {
		t.Error("LoadFromFlags() AI should be disabled without project and region")
	}
	if cfg.PDFDirectory == "" {
		t.Error("LoadFromFlags() PDFDirectory should not be empty")
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != "server" || cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
					t.Errorf("got %s %s:%d", cfg.Mode, cfg.Host, cfg.Port)
				}
			},
		},
		{
			name: "ocr tuning",
			args: []string{"--ocr-dpi=300", "--ocr-min-text=80", "--ocr-page-timeout=5s", "--ocr-lang=deu"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.OCR.DPI != 300 || cfg.OCR.MinTextLength != 80 {
					t.Errorf("OCR = %+v", cfg.OCR)
				}
				if cfg.OCR.PageTimeout != 5*time.Second {
					t.Errorf("OCR.PageTimeout = %v, want 5s", cfg.OCR.PageTimeout)
				}
				if cfg.OCR.Language != "deu" {
					t.Errorf("OCR.Language = %v, want deu", cfg.OCR.Language)
				}
			},
		},
		{
			name: "ocr disabled",
			args: []string{"--ocr=false"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.OCR.Enabled {
					t.Error("OCR.Enabled = true, want false")
				}
			},
		},
		{
			name: "ai enabled",
			args: []string{"--ai-project=pharma-dev", "--ai-region=us-central1", "--ai-timeout=10s"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.AI.Enabled() {
					t.Error("AI.Enabled() = false, want true")
				}
				if cfg.AI.Timeout != 10*time.Second {
					t.Errorf("AI.Timeout = %v, want 10s", cfg.AI.Timeout)
				}
				if cfg.AI.Model != DefaultAIModel {
					t.Errorf("AI.Model = %v, want %v", cfg.AI.Model, DefaultAIModel)
				}
			},
		},
		{
			name: "debug logging and workers",
			args: []string{"--loglevel=debug", "--workers=8"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsDebug() {
					t.Error("IsDebug() = false, want true")
				}
				if cfg.Workers != 8 {
					t.Errorf("Workers = %d, want 8", cfg.Workers)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			args := append([]string{"--dir=" + t.TempDir()}, tt.args...)
			cfg, err := withArgs(t, args...)
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("PVP_MODE", "server")
	t.Setenv("PVP_PORT", "3000")
	t.Setenv("PVP_DIR", tempDir)
	t.Setenv("PVP_LOGLEVEL", "warn")
	t.Setenv("PVP_OCR_DPI", "150")
	t.Setenv("PVP_AI_PROJECT", "pharma-dev")
	t.Setenv("PVP_AI_REGION", "europe-west4")

	cfg, err := withArgs(t)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "server")
	}
	if cfg.Port != 3000 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 3000)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if cfg.OCR.DPI != 150 {
		t.Errorf("LoadFromFlags() OCR.DPI = %v, want %v", cfg.OCR.DPI, 150)
	}
	if cfg.AI.Region != "europe-west4" {
		t.Errorf("LoadFromFlags() AI.Region = %v, want %v", cfg.AI.Region, "europe-west4")
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("PVP_MODE", "server")
	t.Setenv("PVP_PORT", "3000")

	cfg, err := withArgs(t, "--mode=stdio", "--port=8888", "--dir="+t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v (should override env)", cfg.Mode, "stdio")
	}
	if cfg.Port != 8888 {
		t.Errorf("LoadFromFlags() Port = %v, want %v (should override env)", cfg.Port, 8888)
	}
}

func TestLoadFromFlags_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"invalid mode", []string{"--mode=invalid"}, "mode must be either 'stdio' or 'server'"},
		{"invalid port", []string{"--mode=server", "--port=99999"}, "port must be between 1 and 65535"},
		{"invalid log level", []string{"--loglevel=verbose"}, "invalid log level"},
		{"dpi out of range", []string{"--ocr-dpi=20"}, "ocr dpi must be between"},
		{"ai project without region", []string{"--ai-project=pharma-dev"}, "must be set together"},
		{"no workers", []string{"--workers=0"}, "workers must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			args := append([]string{"--dir=" + t.TempDir()}, tt.args...)
			_, err := withArgs(t, args...)
			if err == nil {
				t.Fatalf("LoadFromFlags() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	clearEnvVars()
	_, err := withArgs(t, "--version")
	if err == nil {
		t.Fatal("LoadFromFlags() expected version error")
	}
	if err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want 'version requested'", err)
	}
}
