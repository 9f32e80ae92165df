package cli

import (
	"path/filepath"
	"testing"
)

func TestOpenStoreUsesConfiguredDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("LOREKEEPER_HOME", t.TempDir())
	t.Setenv("LOREKEEPER_PATHS_DATA_DIR", dataDir)

	store, err := openStore()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AppendHistory("cli-test", "GM", "A door creaks."); err != nil {
		t.Fatal(err)
	}
	ids, err := store.Channels()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "cli-test" {
		t.Errorf("channels = %v", ids)
	}
}
