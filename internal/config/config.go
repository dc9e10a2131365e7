// Package config loads ShareFlow's runtime configuration from the
// environment, grounded on helixml-helix/api/pkg/config's envconfig
// struct-tag convention (runner_config.go).
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable ShareFlow exposes. Ports and protocol
// timings default to the spec's fixed values (spec §4, §5). Overrides
// take effect for Discovery.Port (the listener only; announces are
// always sent to port 8080), the Session section, and Logging.
// ControlBus.Port, Discovery.AnnounceInterval and Discovery.StaleAfter
// are loaded but not read: the control bus always listens on 4000 and
// discovery uses its own package constants.
type Config struct {
	Discovery  Discovery
	Session    Session
	ControlBus ControlBus
	Logging    Logging
}

type Discovery struct {
	Port             uint16        `envconfig:"DISCOVERY_PORT" default:"8080"`
	AnnounceInterval time.Duration `envconfig:"DISCOVERY_ANNOUNCE_INTERVAL" default:"1s"`
	StaleAfter       time.Duration `envconfig:"DISCOVERY_STALE_AFTER" default:"10s"`
}

type Session struct {
	Port              uint16        `envconfig:"SESSION_PORT" default:"8080"`
	ConnectTimeout    time.Duration `envconfig:"SESSION_CONNECT_TIMEOUT" default:"5s"`
	HandshakeTimeout  time.Duration `envconfig:"SESSION_HANDSHAKE_TIMEOUT" default:"30s"`
	PendingInboundTTL time.Duration `envconfig:"SESSION_PENDING_INBOUND_TTL" default:"30s"`
	WatchdogInterval  time.Duration `envconfig:"SESSION_WATCHDOG_INTERVAL" default:"5s"`
}

type ControlBus struct {
	Port uint16 `envconfig:"CONTROLBUS_PORT" default:"4000"`
}

type Logging struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load reads Config from the environment, applying the defaults above
// to anything unset.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("SHAREFLOW", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
