package config

import (
	"os"
	"strconv"
	"time"
)

const defaultTimezone = "America/New_York"

// Config holds service configuration, populated from environment variables.
type Config struct {
	Port     string // HTTP port (default "8270")
	DataDir  string // Directory for the SQLite database (default "./data")
	DevMode  bool   // DEV_MODE=true: deterministic offline capabilities
	FreePlan bool   // FREE_PLAN=true: caps the mock generator at 150 items

	OllamaURL     string // Ollama API base URL (default "http://localhost:11434")
	EmbedModel    string // Ollama embedding model (default "nomic-embed-text")
	DisableEmbeds bool   // DISABLE_EMBEDDINGS=true: embedding capability absent

	AnthropicKey   string // empty = classification/summarization/digest capability absent
	AnthropicModel string // default "claude-sonnet-4-5"

	RulesFile string // optional YAML keyword-rule override file
	Timezone  string // digest date bucketing timezone (default America/New_York)

	Workers   int // background processing workers (default 4)
	QueueSize int // background queue depth (default 256)

	DiscordToken   string // optional: enables the Discord ingestion listener
	DiscordChannel string // channel to listen on (empty = all channels the bot sees)
}

// Load reads configuration from the environment.
func Load() Config {
	return Config{
		Port:           envOr("SIGNALBOARD_PORT", "8270"),
		DataDir:        envOr("SIGNALBOARD_DATA_DIR", "./data"),
		DevMode:        os.Getenv("DEV_MODE") == "true",
		FreePlan:       os.Getenv("FREE_PLAN") == "true",
		OllamaURL:      envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:     envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		DisableEmbeds:  os.Getenv("DISABLE_EMBEDDINGS") == "true",
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel: envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		RulesFile:      os.Getenv("SIGNALBOARD_RULES_FILE"),
		Timezone:       envOr("SIGNALBOARD_TZ", defaultTimezone),
		Workers:        envInt("SIGNALBOARD_WORKERS", 4),
		QueueSize:      envInt("SIGNALBOARD_QUEUE_SIZE", 256),
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DiscordChannel: os.Getenv("DISCORD_CHANNEL_ID"),
	}
}

// Location resolves the digest timezone, falling back to UTC on bad input.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
