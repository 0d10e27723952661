package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Config holds process configuration. Flags win over ZENITH_* environment
// variables, which win over defaults.
type Config struct {
	Addr         string
	DBPath       string // empty disables the database
	TickInterval time.Duration
	NATSURL      string // empty disables event publishing
	NATSSubject  string
	LogLevel     zerolog.Level
	LogFormat    string // console or json
	Debug        bool
}

func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("zenith-maint", flag.ContinueOnError)

	var (
		addr      = fs.String("addr", getEnv("ZENITH_ADDR", ":8080"), "HTTP bind address")
		dbPath    = fs.String("db", getEnv("ZENITH_DB", "zenith.db"), "SQLite DB path (empty disables database tasks)")
		tick      = fs.Duration("tick", getEnvDuration("ZENITH_TICK", 60*time.Second), "maintenance check interval")
		natsURL   = fs.String("nats-url", getEnv("ZENITH_NATS_URL", ""), "NATS server URL for result events")
		subject   = fs.String("nats-subject", getEnv("ZENITH_NATS_SUBJECT", "zenith.maintenance.results"), "NATS subject for result events")
		level     = fs.String("log-level", getEnv("ZENITH_LOG_LEVEL", "info"), "log level")
		logFormat = fs.String("log-format", getEnv("ZENITH_LOG_FORMAT", "console"), "log format: console or json")
		debug     = fs.Bool("debug", getEnvBool("ZENITH_DEBUG", false), "enable pprof endpoints")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level %q: %w", *level, err)
	}
	if *logFormat != "console" && *logFormat != "json" {
		return Config{}, fmt.Errorf("invalid log format %q", *logFormat)
	}
	if *tick < time.Second {
		return Config{}, fmt.Errorf("tick interval must be at least 1s, got %s", *tick)
	}

	return Config{
		Addr:         *addr,
		DBPath:       *dbPath,
		TickInterval: *tick,
		NATSURL:      *natsURL,
		NATSSubject:  *subject,
		LogLevel:     lvl,
		LogFormat:    *logFormat,
		Debug:        *debug,
	}, nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
