// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"TIDYRUN_PROVIDER", "TIDYRUN_MODEL", "TIDYRUN_API_KEY", "GROQ_API_KEY",
		"TIDYRUN_BASE_URL", "TIDYRUN_OLLAMA_URL", "TIDYRUN_MAX_RETRIES", "TIDYRUN_LEDGER_PATH",
		"TIDYRUN_MINIO_ACCESS_KEY", "TIDYRUN_MINIO_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
	return home
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Execution.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.AttemptTimeout())
	assert.Equal(t, time.Minute, cfg.Timeout())
}

func TestLoadWithoutFilesUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Completion.Model, cfg.Completion.Model)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	home := isolate(t)
	cfg := Default()
	cfg.Completion.APIKey = "gsk_test"
	cfg.Execution.MaxRetries = 5
	cfg.Inbox.DebounceMs = 250
	require.NoError(t, Save(cfg))

	path := filepath.Join(home, ".tidyrun", "config.toml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gsk_test", loaded.Completion.APIKey)
	assert.Equal(t, 5, loaded.Execution.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, loaded.Debounce())
}

func TestLoadFromPathPartialFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte("[execution]\nmax_retries = 4\n"), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Execution.MaxRetries)
	assert.Equal(t, Default().Execution.AttemptTimeoutMs, cfg.Execution.AttemptTimeoutMs)
	assert.Equal(t, "groq", cfg.Completion.Provider)
}

func TestLoadFromPathRejectsUnknownKeys(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte("[execution]\nmax_retrys = 4\n"), 0o600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retrys")
}

func TestLoadFromPathJSON(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"completion": {"provider": "ollama"}}`), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Completion.Provider)
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GROQ_API_KEY", "gsk_env")
	t.Setenv("TIDYRUN_MAX_RETRIES", "6")
	t.Setenv("TIDYRUN_MODEL", "llama3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gsk_env", cfg.Completion.APIKey)
	assert.Equal(t, 6, cfg.Execution.MaxRetries)
	assert.Equal(t, "llama3", cfg.Completion.Model)
	assert.Equal(t, "llama3", cfg.Ollama.Model)

	t.Setenv("TIDYRUN_API_KEY", "explicit")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "explicit", cfg.Completion.APIKey)
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Completion.Provider = "bard"
	cfg.Execution.MaxRetries = 0
	cfg.Ollama.URL = "ftp://host"
	cfg.Export.Enabled = true
	cfg.Export.Endpoint = ""

	err := cfg.Validate()
	require.Error(t, err)
	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{"completion.provider", "execution.max_retries", "ollama.url", "export.endpoint"}, fields)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("execution.max_retries", "7"))
	assert.Equal(t, 7, cfg.Execution.MaxRetries)

	require.NoError(t, cfg.Set("completion.base_url", "http://localhost:8080/v1"))
	assert.Equal(t, "http://localhost:8080/v1", cfg.Completion.BaseURL)

	require.NoError(t, cfg.Set("export.use_ssl", "false"))
	assert.False(t, cfg.Export.UseSSL)

	v, err := cfg.Get("inbox.out_dir")
	require.NoError(t, err)
	assert.Equal(t, "cleaned", v)

	assert.Error(t, cfg.Set("execution.max_retries", "many"))
	assert.Error(t, cfg.Set("export.use_ssl", "maybe"))
	assert.Error(t, cfg.Set("nope.key", "x"))
	assert.Error(t, cfg.Set("execution", "x"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestGetAllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Completion.APIKey = "gsk_secret"
	cfg.Export.SecretKey = "minio_secret"

	s := cfg.String()
	assert.NotContains(t, s, "gsk_secret")
	assert.NotContains(t, s, "minio_secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "gsk_secret", cfg.Completion.APIKey, "redaction works on a copy")
	assert.True(t, IsSecret("completion.api_key"))
}

func TestLedgerPathDefault(t *testing.T) {
	home := isolate(t)
	path, err := Default().LedgerPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".tidyrun", "history.db"), path)
}
