package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lorekeeper/lorekeeper/internal/config"
	"github.com/lorekeeper/lorekeeper/internal/quest"
	"github.com/lorekeeper/lorekeeper/internal/transcript"
)

var (
	exportJSON bool
	exportTail int
)

var exportCmd = &cobra.Command{
	Use:   "export <channel>",
	Short: "Print a campaign's chronicle or transcript tail",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "Emit JSON instead of text")
	exportCmd.Flags().IntVar(&exportTail, "tail", 0, "Print the last N transcript events instead of the chronicle")
}

func runExport(cmd *cobra.Command, args []string) error {
	channelID := args[0]
	if exportTail > 0 {
		return printTranscriptTail(channelID, exportTail)
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	board := quest.NewService(store).Board(channelID)
	if len(board.Chronicle) == 0 {
		fmt.Println("The chronicle is empty.")
		return nil
	}

	if exportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(board.Chronicle)
	}
	for _, e := range board.Chronicle {
		fmt.Printf("%s %s\n", color.YellowString("Day %d:", e.Day), e.Text)
	}
	return nil
}

func printTranscriptTail(channelID string, n int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ts, err := transcript.NewService(cfg.Paths.TranscriptDB)
	if err != nil {
		return fmt.Errorf("open transcript db: %w", err)
	}
	defer ts.Close()
	events, err := ts.Tail(channelID, n)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No transcript events.")
		return nil
	}
	for _, e := range events {
		who := e.SenderName
		if who == "" {
			who = e.EventType
		}
		fmt.Printf("%s %s: %s\n", color.CyanString(e.CreatedAt.Format("2006-01-02 15:04")), who, e.Content)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
