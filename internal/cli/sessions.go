package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lorekeeper/lorekeeper/internal/domain"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List campaign sessions on disk",
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	ids, err := store.Channels()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}
	for _, id := range ids {
		rec := store.Load(id)
		fmt.Printf("%s  day %d, %d participants (%d active), %d history lines%s%s\n",
			color.CyanString(id),
			rec.WorldState.Day,
			len(rec.Participants),
			len(rec.ActiveParticipants()),
			len(rec.History),
			flag(rec.Prepared, "  [prepared]"),
			flag(rec.Settings.SessionLocked, "  [locked]"),
		)
	}
	return nil
}

func flag(on bool, label string) string {
	if on {
		return label
	}
	return ""
}

func openStore() (*domain.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := domain.NewStore(cfg.Paths.DataDir, cfg.Game.HistoryLimit, nil)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return store, nil
}
