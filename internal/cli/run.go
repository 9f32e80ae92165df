package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lorekeeper/lorekeeper/internal/bus"
	"github.com/lorekeeper/lorekeeper/internal/channels"
	"github.com/lorekeeper/lorekeeper/internal/config"
	"github.com/lorekeeper/lorekeeper/internal/domain"
	"github.com/lorekeeper/lorekeeper/internal/gm"
	"github.com/lorekeeper/lorekeeper/internal/provider"
	"github.com/lorekeeper/lorekeeper/internal/quest"
	"github.com/lorekeeper/lorekeeper/internal/relay"
	"github.com/lorekeeper/lorekeeper/internal/transcript"
)

var runVerbose bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the game master on the configured chat transports",
	RunE:  runGameMaster,
}

func init() {
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Debug logging")
}

func runGameMaster(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if runVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("no API key configured: set OPENAI_API_KEY or providers.openai.apiKey")
	}

	store, err := domain.NewStore(cfg.Paths.DataDir, cfg.Game.HistoryLimit, logger)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	quests := quest.NewService(store)
	llm := provider.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Model.Narration)

	ts, err := transcript.NewService(cfg.Paths.TranscriptDB)
	if err != nil {
		return fmt.Errorf("open transcript db: %w", err)
	}
	defer ts.Close()

	var chronicleRelay *relay.Relay
	if cfg.Relay.Enabled {
		pub := relay.NewKafkaPublisher(cfg.Relay.Brokers)
		chronicleRelay = relay.New(pub, cfg.Relay.TopicPrefix)
		defer chronicleRelay.Close()
		logger.Info("chronicle relay enabled", "brokers", cfg.Relay.Brokers)
	}

	mbus := bus.NewMessageBus()
	svc := gm.NewService(gm.Config{
		CommandPrefix:  cfg.Game.CommandPrefix,
		NarrationModel: cfg.Model.Narration,
		AnalysisModel:  cfg.Model.Analysis,
		MaxTokens:      cfg.Model.MaxTokens,
		Temperature:    cfg.Model.Temperature,
	}, mbus, store, quests, llm, ts, chronicleRelay, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transports := []channels.Channel{
		channels.NewSlackChannel(cfg.Channels.Slack, mbus, logger),
		channels.NewWhatsAppChannel(cfg.Channels.WhatsApp, mbus, logger),
	}
	for _, ch := range transports {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", ch.Name(), err)
		}
	}
	defer func() {
		for _, ch := range transports {
			_ = ch.Stop()
		}
	}()
	if !cfg.Channels.Slack.Enabled && !cfg.Channels.WhatsApp.Enabled {
		logger.Warn("no chat transports enabled; the game master will idle")
	}

	go mbus.DispatchOutbound(ctx)

	logger.Info("lorekeeper running", "version", version)
	return svc.Run(ctx)
}
