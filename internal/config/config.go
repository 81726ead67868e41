package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the newsroom server.
type Config struct {
	DBPath         string
	UploadsDir     string
	ServerPort     int
	LogLevel       string
	MaxUploadBytes int64
	SentryDSN      string
	Environment    string
	ShutdownGrace  time.Duration
}

const (
	defaultDBPath         = "./data/newsroom.db"
	defaultUploadsDir     = "./data/uploads"
	defaultServerPort     = 8080
	defaultLogLevel       = "info"
	defaultMaxUploadBytes = 5242800
	defaultShutdownGrace  = 10 * time.Second
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		UploadsDir:    getEnv("UPLOADS_DIR", defaultUploadsDir),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   os.Getenv("ENV"),
		ShutdownGrace: defaultShutdownGrace,
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	uploadValue := getEnv("MAX_UPLOAD_BYTES", strconv.FormatInt(defaultMaxUploadBytes, 10))
	maxUpload, err := strconv.ParseInt(uploadValue, 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid MAX_UPLOAD_BYTES value: %s", uploadValue)
	}
	cfg.MaxUploadBytes = maxUpload

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
