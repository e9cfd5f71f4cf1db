package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// clears variables that would leak in from the developer's shell
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "ANTHROPIC_API_KEY",
		"VIDSRT_API_KEY", "VIDSRT_PROVIDER", "VIDSRT_LANGUAGE", "VIDSRT_CONCURRENCY",
		"VIDSRT_CHUNK_DURATION", "VIDSRT_CORS_ORIGINS", "VIDSRT_TRANSLATE_API_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider != DefaultProvider || cfg.Language != "en" || cfg.Task != "transcribe" {
		t.Errorf("unexpected model defaults: %+v", cfg)
	}
	if cfg.ChunkDuration != 10*time.Minute || cfg.Concurrency != 3 {
		t.Errorf("unexpected chunk defaults: %v, %d", cfg.ChunkDuration, cfg.Concurrency)
	}
	if cfg.RevealPause != 200*time.Millisecond {
		t.Errorf("RevealPause = %v, want 200ms", cfg.RevealPause)
	}
	if cfg.Addr != ":8501" || cfg.MaxUploadSize != 512<<20 {
		t.Errorf("unexpected server defaults: %q, %d", cfg.Addr, cfg.MaxUploadSize)
	}
	if cfg.Format != "srt" {
		t.Errorf("Format = %q, want srt", cfg.Format)
	}
}

func TestLoadEnvironment(t *testing.T) {
	cleanEnv(t)
	t.Setenv("VIDSRT_PROVIDER", "Gemini")
	t.Setenv("VIDSRT_CHUNK_DURATION", "90s")
	t.Setenv("VIDSRT_CONCURRENCY", "5")
	t.Setenv("VIDSRT_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
	if cfg.ChunkDuration != 90*time.Second || cfg.Concurrency != 5 {
		t.Errorf("unexpected chunking: %v, %d", cfg.ChunkDuration, cfg.Concurrency)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.APIKey != "gem-key" {
		t.Errorf("APIKey = %q, want fallback from GEMINI_API_KEY", cfg.APIKey)
	}
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	cleanEnv(t)
	t.Setenv("VIDSRT_LANGUAGE", "de")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("language", DefaultLanguage, "")
	fs.String("api-key", "", "")
	fs.Int("concurrency", DefaultConcurrency, "")
	if err := fs.Parse([]string{"--language", "fr", "--api-key", "sk-flag"}); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	cfg, err := Load(LoadOptions{}, fs)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Language != "fr" {
		t.Errorf("Language = %q, want flag value fr", cfg.Language)
	}
	if cfg.APIKey != "sk-flag" {
		t.Errorf("APIKey = %q, want sk-flag", cfg.APIKey)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want default 3", cfg.Concurrency)
	}
}

func TestLoadConfigFile(t *testing.T) {
	cleanEnv(t)

	path := filepath.Join(t.TempDir(), "vidsrt.yaml")
	content := "provider: whisper\nwhisper-url: http://127.0.0.1:8080\nformat: vtt\nreveal-pause: 0s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(LoadOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider != "whisper" || cfg.WhisperURL != "http://127.0.0.1:8080" || cfg.Format != "vtt" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.RevealPause != 0 {
		t.Errorf("RevealPause = %v, want 0", cfg.RevealPause)
	}
	if err := cfg.RequireTranscriber(); err != nil {
		t.Errorf("whisper should not need an API key: %v", err)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	cleanEnv(t)
	if _, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	cleanEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("VIDSRT_PROMPT=Names: Ada, Grace\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("VIDSRT_PROMPT") })

	cfg, err := Load(LoadOptions{EnvFile: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Prompt != "Names: Ada, Grace" {
		t.Errorf("Prompt = %q", cfg.Prompt)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad provider", map[string]string{"VIDSRT_PROVIDER": "azure"}, "provider must be one of"},
		{"bad task", map[string]string{"VIDSRT_TASK": "summarize"}, "task must be one of"},
		{"bad format", map[string]string{"VIDSRT_FORMAT": "ass"}, "format must be one of"},
		{"zero concurrency", map[string]string{"VIDSRT_CONCURRENCY": "0"}, "concurrency must be at least 1"},
		{"bad whisper url", map[string]string{"VIDSRT_WHISPER_URL": "not a url"}, "whisper-url must be a valid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(LoadOptions{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequireTranscriber(t *testing.T) {
	cfg := &Config{Provider: "openai"}
	err := cfg.RequireTranscriber()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("expected missing key error naming OPENAI_API_KEY, got %v", err)
	}

	cfg.APIKey = "sk-test"
	if err := cfg.RequireTranscriber(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequireTranslator(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantOK  bool
		wantErr bool
	}{
		{"disabled", Config{}, false, false},
		{"missing provider", Config{TranslateTo: "Spanish"}, false, true},
		{"missing key", Config{TranslateTo: "Spanish", TranslateProvider: "anthropic"}, false, true},
		{"ready", Config{TranslateTo: "Spanish", TranslateProvider: "anthropic", TranslateAPIKey: "k"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.cfg.RequireTranslator()
			if ok != tt.wantOK || (err != nil) != tt.wantErr {
				t.Errorf("RequireTranslator() = %v, %v; want %v, err=%v", ok, err, tt.wantOK, tt.wantErr)
			}
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	cleanEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("ANTHROPIC_API_KEY", "claude-key")

	tests := []struct {
		provider, explicit, want string
	}{
		{"openai", "explicit", "explicit"},
		{"openai", "", ""},
		{"gemini", "", "google-key"},
		{"Anthropic", "", "claude-key"},
		{"whisper", "", ""},
	}

	for _, tt := range tests {
		if got := ResolveAPIKey(tt.provider, tt.explicit); got != tt.want {
			t.Errorf("ResolveAPIKey(%q, %q) = %q, want %q", tt.provider, tt.explicit, got, tt.want)
		}
	}
}
