package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ec-dashboard/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	ServerPort     int
	HostPort       int
	CustomerPorts  []int
	BackendURL     string
	ParentResource string
	BridgeScheme   string
	DBPath         string
	LogLevel       string
	LogFile        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// Embedded reports whether the process runs behind the game client's NUI host.
func (c *Config) Embedded() bool {
	return c.ParentResource != ""
}

// BridgeURL is the base URL NUI callbacks are posted to.
func (c *Config) BridgeURL() string {
	if c.ParentResource == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s", c.BridgeScheme, c.ParentResource)
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	serverPort, err := getEnvInt("SERVER_PORT", constants.DefaultServerPort)
	if err != nil {
		return nil, err
	}
	hostPort, err := getEnvInt("HOST_PORT", constants.HostWebPort)
	if err != nil {
		return nil, err
	}
	customerPorts, err := parsePorts(getEnv("CUSTOMER_PORTS", ""), constants.CustomerWebPorts)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getEnvDuration("POLL_INTERVAL", constants.DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvDuration("REQUEST_TIMEOUT", constants.ExternalAPITimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:     serverPort,
		HostPort:       hostPort,
		CustomerPorts:  customerPorts,
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", "http://127.0.0.1:30120"), "/"),
		ParentResource: getEnv("PARENT_RESOURCE", ""),
		BridgeScheme:   getEnv("BRIDGE_SCHEME", "https"),
		DBPath:         getEnv("DB_PATH", "ec-dashboard.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		PollInterval:   pollInterval,
		RequestTimeout: requestTimeout,
	}

	logger.Info().
		Int("server_port", cfg.ServerPort).
		Int("host_port", cfg.HostPort).
		Ints("customer_ports", cfg.CustomerPorts).
		Str("backend_url", cfg.BackendURL).
		Str("parent_resource", cfg.ParentResource).
		Str("db_path", cfg.DBPath).
		Str("log_level", cfg.LogLevel).
		Dur("poll_interval", cfg.PollInterval).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func parsePorts(raw string, fallback []int) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return append([]int(nil), fallback...), nil
	}
	var ports []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q in CUSTOMER_PORTS: %w", part, err)
		}
		ports = append(ports, n)
	}
	return ports, nil
}
