package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfigMergeAndOverrides(t *testing.T) {
	tempDir := t.TempDir()
	defaultPath := filepath.Join(tempDir, "default.yaml")
	globalPath := filepath.Join(tempDir, "global.yaml")
	projectDir := filepath.Join(tempDir, "project")
	projectPath := filepath.Join(projectDir, ".codeagent.yaml")

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("mkdir project: %v", err)
	}

	writeFile(t, defaultPath, "defaults:\n  backend: llama\nllama:\n  threads: 2\nlogging:\n  level: info\n")
	writeFile(t, globalPath, "llama:\n  threads: 6\nlogging:\n  level: debug\n")
	writeFile(t, projectPath, "llama:\n  threads: 8\n")

	t.Setenv("CODEAGENT_DEFAULT_CONFIG", defaultPath)
	t.Setenv("CODEAGENT_GLOBAL_CONFIG", globalPath)
	t.Setenv("CODEAGENT_PROJECT_CONFIG_NAME", ".codeagent.yaml")
	t.Setenv("LLAMA_MODEL_PATH", "")
	os.Unsetenv("LLAMA_MODEL_PATH")

	if _, err := LoadConfig(projectDir); err != nil {
		t.Fatalf("load config: %v", err)
	}

	if value, ok := GetConfig("llama.threads"); !ok || value != "8" {
		t.Fatalf("expected threads 8, got %q", value)
	}

	if value, ok := GetConfig("defaults.backend"); !ok || value != "llama" {
		t.Fatalf("expected backend llama, got %q", value)
	}

	if value, ok := GetConfig("logging.level"); !ok || value != "debug" {
		t.Fatalf("expected logging.level debug, got %q", value)
	}

	t.Setenv("CODEAGENT_LLAMA_MODEL_PATH", "/models/env.gguf")
	if value, ok := GetConfig("llama.model_path"); !ok || value != "/models/env.gguf" {
		t.Fatalf("expected env override, got %q", value)
	}

	t.Setenv("LLAMA_MODEL_PATH", "/models/legacy.gguf")
	if value, ok := GetConfig("llama.model_path"); !ok || value != "/models/legacy.gguf" {
		t.Fatalf("expected legacy override, got %q", value)
	}
}

func TestResolveDefaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CODEAGENT_DEFAULT_CONFIG", filepath.Join(tempDir, "missing.yaml"))
	t.Setenv("CODEAGENT_GLOBAL_CONFIG", filepath.Join(tempDir, "missing-global.yaml"))
	for _, key := range []string{"LLAMA_MODEL_PATH", "LLAMA_BIN_PATH", "OPENAI_API_KEY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if _, err := LoadConfig(tempDir); err != nil {
		t.Fatalf("load config: %v", err)
	}

	settings := Resolve()
	if settings.Backend != DefaultBackend {
		t.Fatalf("expected backend %q, got %q", DefaultBackend, settings.Backend)
	}
	if settings.LlamaModelPath != "" {
		t.Fatalf("expected no model path, got %q", settings.LlamaModelPath)
	}
	if settings.LlamaThreads != DefaultLlamaThreads {
		t.Fatalf("expected %d threads, got %d", DefaultLlamaThreads, settings.LlamaThreads)
	}
	if settings.OpenAIEndpoint != DefaultOpenAIEndpoint {
		t.Fatalf("expected endpoint %q, got %q", DefaultOpenAIEndpoint, settings.OpenAIEndpoint)
	}
	if settings.ProgressInterval != DefaultProgressInterval {
		t.Fatalf("expected interval %s, got %s", DefaultProgressInterval, settings.ProgressInterval)
	}
}

func TestResolveReadsProjectFile(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CODEAGENT_DEFAULT_CONFIG", filepath.Join(tempDir, "missing.yaml"))
	t.Setenv("CODEAGENT_GLOBAL_CONFIG", filepath.Join(tempDir, "missing-global.yaml"))
	t.Setenv("CODEAGENT_PROJECT_CONFIG_NAME", ".codeagent.yaml")
	t.Setenv("OPENAI_API_KEY", "sk-legacy")

	writeFile(t, filepath.Join(tempDir, ".codeagent.yaml"),
		"ui:\n  progress_interval: 250ms\n  settle_delay: nonsense\nllama:\n  threads: -3\n")

	if _, err := LoadConfig(tempDir); err != nil {
		t.Fatalf("load config: %v", err)
	}

	settings := Resolve()
	if settings.ProgressInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms interval, got %s", settings.ProgressInterval)
	}
	if settings.SettleDelay != DefaultSettleDelay {
		t.Fatalf("expected default settle delay, got %s", settings.SettleDelay)
	}
	if settings.LlamaThreads != DefaultLlamaThreads {
		t.Fatalf("expected default threads, got %d", settings.LlamaThreads)
	}
	if settings.OpenAIKey != "sk-legacy" {
		t.Fatalf("expected legacy api key, got %q", settings.OpenAIKey)
	}
}

func TestListConfigMasksSecrets(t *testing.T) {
	tempDir := t.TempDir()
	projectPath := filepath.Join(tempDir, ".codeagent.yaml")
	t.Setenv("CODEAGENT_DEFAULT_CONFIG", filepath.Join(tempDir, "missing.yaml"))
	t.Setenv("CODEAGENT_GLOBAL_CONFIG", filepath.Join(tempDir, "missing-global.yaml"))
	t.Setenv("CODEAGENT_PROJECT_CONFIG_NAME", ".codeagent.yaml")
	writeFile(t, projectPath, "openai:\n  api_key: sk-secret\n")

	if _, err := LoadConfig(tempDir); err != nil {
		t.Fatalf("load config: %v", err)
	}

	items, err := ListConfig()
	if err != nil {
		t.Fatalf("list config: %v", err)
	}
	if items["openai.api_key"] != "********" {
		t.Fatalf("expected masked api key, got %q", items["openai.api_key"])
	}
	if items["openai.model"] != DefaultOpenAIModel {
		t.Fatalf("expected default model, got %q", items["openai.model"])
	}
}

func TestSetConfigWritesGlobal(t *testing.T) {
	tempDir := t.TempDir()
	globalPath := filepath.Join(tempDir, "config.yaml")

	t.Setenv("CODEAGENT_CONFIG_DIR", tempDir)
	t.Setenv("CODEAGENT_GLOBAL_CONFIG", globalPath)

	if err := SetConfig("defaults.backend", "openai"); err != nil {
		t.Fatalf("set config: %v", err)
	}

	v := viper.New()
	v.SetConfigFile(globalPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("read global config: %v", err)
	}

	if value := v.GetString("defaults.backend"); value != "openai" {
		t.Fatalf("expected defaults.backend openai, got %q", value)
	}
}

func TestValidate(t *testing.T) {
	valid := map[string]string{
		"defaults.backend":     "openai",
		"LLAMA.THREADS":        "12",
		"ui.settle_delay":      "0s",
		"ui.progress_interval": "250ms",
		"logging.level":        "DEBUG",
	}
	for key, value := range valid {
		if err := Validate(key, value); err != nil {
			t.Fatalf("Validate(%q, %q): %v", key, value, err)
		}
	}

	invalid := map[string]string{
		"llama.threads":        "abc",
		"ui.settle_delay":      "banana",
		"ui.progress_interval": "-5ms",
		"logging.level":        "chatty",
	}
	for key, value := range invalid {
		if err := Validate(key, value); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("Validate(%q, %q): expected ErrInvalidValue, got %v", key, value, err)
		}
	}

	if err := Validate("llama.modelpath", "/m.gguf"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestSetConfigRejectsInvalidValue(t *testing.T) {
	globalPath := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("CODEAGENT_GLOBAL_CONFIG", globalPath)

	if err := SetConfig("llama.threads", "many"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := os.Stat(globalPath); !os.IsNotExist(err) {
		t.Fatalf("expected no config file to be written, got %v", err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
