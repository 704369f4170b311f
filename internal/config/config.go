package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// DefaultFilenameFormat is the replay filename template. Placeholders are
// resolved from the finished match's metadata and mapping tables.
const DefaultFilenameFormat = "%date - %format (%set) - %p1name (%p1char) vs %p2name (%p2char) - Game %game.rfr"

type Config struct {
	ConsoleHost    string
	ConsolePort    string
	ReplayDir      string
	DBPath         string
	ServerPort     string
	LogLevel       string
	FilenameFormat string
}

// ConsoleAddr is the dial target for the instrumented console.
func (c *Config) ConsoleAddr() string {
	return fmt.Sprintf("%s:%s", c.ConsoleHost, c.ConsolePort)
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		ConsoleHost:    getEnv("CONSOLE_HOST", ""),
		ConsolePort:    getEnv("CONSOLE_PORT", "42069"),
		ReplayDir:      getEnv("REPLAY_DIR", "replays"),
		DBPath:         getEnv("DB_PATH", "tracker.db"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		FilenameFormat: getEnv("FILENAME_FORMAT", DefaultFilenameFormat),
	}

	if cfg.ConsoleHost == "" {
		return nil, fmt.Errorf("CONSOLE_HOST is required")
	}

	if err := os.MkdirAll(cfg.ReplayDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create replay directory: %w", err)
	}

	logger.Info().
		Str("console_addr", cfg.ConsoleAddr()).
		Str("replay_dir", cfg.ReplayDir).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
