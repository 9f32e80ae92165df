package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("LOREKEEPER_CONFIG", filepath.Join(t.TempDir(), "nope.json"))
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Game.HistoryLimit != 40 {
		t.Errorf("history limit = %d", cfg.Game.HistoryLimit)
	}
	if cfg.Model.Narration != "gpt-4o" {
		t.Errorf("narration model = %q", cfg.Model.Narration)
	}
	if cfg.Game.CommandPrefix != "!" {
		t.Errorf("command prefix = %q", cfg.Game.CommandPrefix)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"model": {"narration": "file-model", "maxTokens": 1234},
		"game": {"historyLimit": 60}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOREKEEPER_CONFIG", path)
	t.Setenv("HOME", dir)
	t.Setenv("LOREKEEPER_MODEL_NARRATION", "env-model")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Narration != "env-model" {
		t.Errorf("env should beat file: narration = %q", cfg.Model.Narration)
	}
	if cfg.Model.MaxTokens != 1234 {
		t.Errorf("file value lost: maxTokens = %d", cfg.Model.MaxTokens)
	}
	if cfg.Game.HistoryLimit != 60 {
		t.Errorf("file value lost: historyLimit = %d", cfg.Game.HistoryLimit)
	}
}

func TestEnvRefSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"providers": {"openai": {"apiKey": "${TEST_LK_KEY}"}}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOREKEEPER_CONFIG", path)
	t.Setenv("HOME", dir)
	t.Setenv("TEST_LK_KEY", "sk-test-123")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test-123" {
		t.Errorf("apiKey = %q", cfg.Providers.OpenAI.APIKey)
	}
}
