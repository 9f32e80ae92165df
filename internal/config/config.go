// Package config provides configuration types and loading for lorekeeper.
package config

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Game      GameConfig      `json:"game"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Relay     RelayConfig     `json:"relay"`
}

// PathsConfig groups filesystem locations.
type PathsConfig struct {
	DataDir      string `json:"dataDir" envconfig:"DATA_DIR"`
	TranscriptDB string `json:"transcriptDb" envconfig:"TRANSCRIPT_DB"`
}

// ModelConfig groups LLM model settings. Narration writes the story;
// Analysis runs the cheaper post-turn extraction pass.
type ModelConfig struct {
	Narration   string  `json:"narration" envconfig:"NARRATION"`
	Analysis    string  `json:"analysis" envconfig:"ANALYSIS"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// GameConfig groups game-master behaviour settings.
type GameConfig struct {
	HistoryLimit  int      `json:"historyLimit" envconfig:"HISTORY_LIMIT"`
	DefaultGenres []string `json:"defaultGenres"`
	CommandPrefix string   `json:"commandPrefix" envconfig:"COMMAND_PREFIX"`
}

// ChannelsConfig contains the chat transport configurations.
type ChannelsConfig struct {
	Slack    SlackConfig    `json:"slack"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// SlackConfig configures the Slack Socket Mode transport.
type SlackConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"SLACK_ENABLED"`
	BotToken  string   `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	AppToken  string   `json:"appToken" envconfig:"SLACK_APP_TOKEN"`
	AllowFrom []string `json:"allowFrom"`
}

// WhatsAppConfig configures the WhatsApp transport.
type WhatsAppConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"WHATSAPP_ENABLED"`
	SessionDB string   `json:"sessionDb" envconfig:"WHATSAPP_SESSION_DB"`
	AllowFrom []string `json:"allowFrom"`
}

// ProvidersConfig contains LLM provider credentials.
type ProvidersConfig struct {
	OpenAI ProviderConfig `json:"openai"`
}

// ProviderConfig contains settings for one OpenAI-compatible endpoint.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// RelayConfig configures the Kafka chronicle relay.
type RelayConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers     string `json:"brokers" envconfig:"BROKERS"`
	TopicPrefix string `json:"topicPrefix" envconfig:"TOPIC_PREFIX"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:      "~/.lorekeeper/data",
			TranscriptDB: "~/.lorekeeper/transcript.db",
		},
		Model: ModelConfig{
			Narration:   "gpt-4o",
			Analysis:    "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.9,
		},
		Game: GameConfig{
			HistoryLimit:  40,
			DefaultGenres: []string{"noir"},
			CommandPrefix: "!",
		},
		Relay: RelayConfig{
			Enabled:     false,
			Brokers:     "localhost:9092",
			TopicPrefix: "campaign",
		},
	}
}
