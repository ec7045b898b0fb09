package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/dicesuki/dicesuki/server"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(log)

	conf, err := readConfig(log)
	if err != nil {
		log.Error("Failed to read config.", "err", err)
		os.Exit(1)
	}

	srv := server.New(conf)
	if err := srv.Listen(); err != nil {
		log.Error("Server stopped.", "err", err)
		os.Exit(1)
	}
}

// logLevel reads the LOG_LEVEL environment variable, defaulting to info.
func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// readConfig reads the configuration from the config.toml file, or creates
// the file if it does not yet exist.
func readConfig(log *slog.Logger) (server.Config, error) {
	c := server.DefaultConfig()
	if _, err := os.Stat("config.toml"); os.IsNotExist(err) {
		data, err := toml.Marshal(c)
		if err != nil {
			return server.Config{}, fmt.Errorf("encode default config: %v", err)
		}
		if err := os.WriteFile("config.toml", data, 0644); err != nil {
			return server.Config{}, fmt.Errorf("create default config: %v", err)
		}
		return c.Config(log)
	}
	data, err := os.ReadFile("config.toml")
	if err != nil {
		return server.Config{}, fmt.Errorf("read config: %v", err)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return server.Config{}, fmt.Errorf("decode config: %v", err)
	}
	return c.Config(log)
}
