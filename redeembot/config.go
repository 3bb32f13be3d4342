package redeembot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/sangege/redeembot/redeembot/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig       `toml:"log"`
	Bot    BotConfig       `toml:"bot"`
	DB     database.Config `toml:"db"`
	Oracle OracleConfig    `toml:"oracle"`
	Claim  ClaimConfig     `toml:"claim"`
}

type BotConfig struct {
	DevGuilds    []snowflake.ID `toml:"dev_guilds"`
	Token        string         `toml:"token"`
	DeveloperIDs []snowflake.ID `toml:"developer_ids"`
	AdminChannel snowflake.ID   `toml:"admin_channel"`
	LogChannel   snowflake.ID   `toml:"log_channel"`
	Status       string         `toml:"status"`
}

func (c BotConfig) IsDeveloper(id snowflake.ID) bool {
	for _, dev := range c.DeveloperIDs {
		if dev == id {
			return true
		}
	}
	return false
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

type OracleConfig struct {
	Host           string `toml:"host"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (c OracleConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ClaimConfig struct {
	SessionTimeoutMinutes int `toml:"session_timeout_minutes"`
}

func (c ClaimConfig) SessionTimeout() time.Duration {
	if c.SessionTimeoutMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}
