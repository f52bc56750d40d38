package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goosewin/codeagent/internal/backend"
	"github.com/goosewin/codeagent/internal/config"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	tempDir := t.TempDir()
	t.Setenv("CODEAGENT_DEFAULT_CONFIG", filepath.Join(tempDir, "missing-default.yaml"))
	t.Setenv("CODEAGENT_GLOBAL_CONFIG", filepath.Join(tempDir, "missing-global.yaml"))
	t.Setenv("CODEAGENT_UI_SETTLE_DELAY", "0s")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func clearBackendEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LLAMA_MODEL_PATH", "LLAMA_BIN_PATH", "OPENAI_API_KEY", "CODEAGENT_LLAMA_MODEL_PATH", "CODEAGENT_OPENAI_API_KEY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestScaffoldAutoDetectsLanguage(t *testing.T) {
	previous := scaffoldFs
	scaffoldFs = afero.NewMemMapFs()
	t.Cleanup(func() { scaffoldFs = previous })

	stdout, _, err := execute(t, "scaffold", "auto", "/work/tool.py")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created /work/tool.py with python template.")

	data, err := afero.ReadFile(scaffoldFs, "/work/tool.py")
	require.NoError(t, err)
	assert.Contains(t, string(data), "def main():")

	_, _, err = execute(t, "scaffold", "auto", "/work/notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not detect language")
}

func TestUnknownCommandPrintsUsage(t *testing.T) {
	stdout, stderr, err := execute(t, "frobnicate", "x")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
	assert.Contains(t, stdout+stderr, "Usage:")
}

func TestGenerateWithoutBackend(t *testing.T) {
	clearBackendEnv(t)
	target := filepath.Join(t.TempDir(), "Foo.java")

	_, stderr, err := execute(t, "generate", target, "make", "a", "class")
	require.True(t, errors.Is(err, backend.ErrNotConfigured), "got %v", err)

	var reported reportedError
	assert.True(t, errors.As(err, &reported))
	assert.Contains(t, stderr, "not configured")

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateRequiresPrompt(t *testing.T) {
	_, _, err := execute(t, "generate", "Foo.java")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage:")
}

func TestGenerateWithStubExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	clearBackendEnv(t)

	dir := t.TempDir()
	model := filepath.Join(dir, "model.gguf")
	require.NoError(t, os.WriteFile(model, []byte("gguf"), 0o644))
	stub := filepath.Join(dir, "llama-stub")
	require.NoError(t, os.WriteFile(stub, []byte("#!/bin/sh\necho \"public class Foo {}\"\n"), 0o755))
	t.Setenv("LLAMA_MODEL_PATH", model)
	t.Setenv("LLAMA_BIN_PATH", stub)

	target := filepath.Join(dir, "src", "Foo.java")
	stdout, _, err := execute(t, "generate", target, "make", "a", "class")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Generated code written to "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "public class Foo {}", string(data))
}

func TestBackendsListsRegistered(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	stdout, _, err := execute(t, "backends")
	require.NoError(t, err)
	assert.Contains(t, stdout, "llama")
	assert.Regexp(t, `openai\s+yes\s+\*`, stdout)
}

func TestConfigSetRejectsUnknownKey(t *testing.T) {
	_, _, err := execute(t, "config", "set", "llama.modelpath", "/models/m.gguf")
	require.ErrorIs(t, err, config.ErrUnknownKey)

	_, found := config.GetConfig("llama.modelpath")
	assert.False(t, found)
}

func TestConfigSetRejectsInvalidValues(t *testing.T) {
	for _, args := range [][]string{
		{"llama.threads", "abc"},
		{"llama.threads", "0"},
		{"ui.settle_delay", "banana"},
		{"ui.progress_interval", "soon"},
		{"logging.level", "loud"},
	} {
		_, _, err := execute(t, append([]string{"config", "set"}, args...)...)
		require.ErrorIs(t, err, config.ErrInvalidValue, "set %v", args)
	}
}

func TestConfigSetStoresValidValue(t *testing.T) {
	stdout, _, err := execute(t, "config", "set", "LLAMA.Threads", "8")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Set llama.threads in ")

	value, found := config.GetConfig("llama.threads")
	require.True(t, found)
	assert.Equal(t, "8", value)
}

func TestConfigKeysListsSettings(t *testing.T) {
	stdout, _, err := execute(t, "config", "keys")
	require.NoError(t, err)
	assert.Regexp(t, `llama\.threads\s+int`, stdout)
	assert.Regexp(t, `ui\.settle_delay\s+duration`, stdout)
}
