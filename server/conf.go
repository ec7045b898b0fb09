package server

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config contains options for starting a dice table server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Addr is the address on which the HTTP server should listen, in
	// net.Listen form.
	Addr string
	// CORSOrigin is the origin allowed on the HTTP API and the WebSocket
	// upgrade. The special value "*" allows any origin.
	CORSOrigin string
	// IdleTimeout is how long an empty room survives before the cleanup pass
	// reclaims it.
	IdleTimeout time.Duration
	// CleanupInterval is the period of the background pass that reclaims
	// idle rooms.
	CleanupInterval time.Duration
}

// UserConfig is the user configuration of a server as read from disk. It
// holds settings in a more accessible form than Config, and converts to one
// through UserConfig.Config.
type UserConfig struct {
	// Network holds settings related to network aspects of the server.
	Network struct {
		// Address is the address on which the server should listen. The
		// PORT environment variable overrides the port part when set.
		Address string
		// CORSOrigin is the origin allowed to call the HTTP API and open
		// WebSocket connections. "*" allows any origin. The CORS_ORIGIN
		// environment variable overrides this value when set.
		CORSOrigin string
	}
	Rooms struct {
		// IdleTimeoutSeconds is how long an empty room survives before it is
		// reclaimed, in seconds.
		IdleTimeoutSeconds int
		// CleanupIntervalSeconds is how often the background pass looks for
		// idle rooms, in seconds.
		CleanupIntervalSeconds int
	}
}

// Config converts the UserConfig to a Config, applying environment variable
// overrides, so that it may be used to start a server.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	conf := Config{
		Log:             log,
		Addr:            uc.Network.Address,
		CORSOrigin:      uc.Network.CORSOrigin,
		IdleTimeout:     time.Duration(uc.Rooms.IdleTimeoutSeconds) * time.Second,
		CleanupInterval: time.Duration(uc.Rooms.CleanupIntervalSeconds) * time.Second,
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		conf.Addr = ":" + port
	}
	if origin := strings.TrimSpace(os.Getenv("CORS_ORIGIN")); origin != "" {
		conf.CORSOrigin = origin
	}
	return conf, nil
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Network.Address = ":8080"
	c.Network.CORSOrigin = "*"
	c.Rooms.IdleTimeoutSeconds = 1800
	c.Rooms.CleanupIntervalSeconds = 300
	return c
}
