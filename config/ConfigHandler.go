// Package config reads process settings from the environment, optionally seeded from a .env file.
package config

import (
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const DefaultHomeDir = ".goSsf"

type Config struct {
	Home         string `envconfig:"SSF_HOME"`
	OktaDomain   string `envconfig:"SSF_OKTA_DOMAIN"`
	Issuer       string `envconfig:"SSF_ISSUER" default:"https://my-local-transmitter.com"`
	SubjectEmail string `envconfig:"SSF_SUBJECT_EMAIL" default:"test-user@example.com"`
	KeyFile      string `envconfig:"SSF_KEY_FILE"`
	KeyId        string `envconfig:"SSF_KEY_ID"`
	JwksUrl      string `envconfig:"SSF_JWKS_URL"`

	HistoryLimit  int           `envconfig:"SSF_HISTORY_LIMIT" default:"100"`
	BulkDelay     time.Duration `envconfig:"SSF_BULK_DELAY" default:"500ms"`
	ScenarioDelay time.Duration `envconfig:"SSF_SCENARIO_DELAY" default:"2s"`

	KafkaBrokers string `envconfig:"SSF_KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"SSF_KAFKA_TOPIC" default:"ssf-transmissions"`
	MetricsAddr  string `envconfig:"SSF_METRICS_ADDR"`
	LogLevel     string `envconfig:"SSF_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SSF_LOG_FORMAT" default:"console"`
	LogFile      string `envconfig:"SSF_LOG_FILE"`

	CaFile string `envconfig:"SSF_CA_FILE"`

	ReceiverAddr string `envconfig:"SSF_RECEIVER_ADDR" default:":8443"`
	ReceiverHost string `envconfig:"SSF_RECEIVER_HOST" default:"localhost"`
	ReceiverRate int    `envconfig:"SSF_RECEIVER_RATE" default:"60"`
}

// GetEnvConfig loads .env (when present) and then the SSF_ variables. Errors fall back to defaults.
func GetEnvConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	err := envconfig.Process("", &cfg)
	cfg.Home = strings.Trim(cfg.Home, "\"'")
	if cfg.Home == "" {
		cfg.Home = DefaultHomeDir
		if usr, err := user.Current(); err == nil {
			cfg.Home = filepath.Join(usr.HomeDir, DefaultHomeDir)
		}
	}
	return cfg, err
}

// NewLogger builds the process logger from LogLevel, LogFormat ("json" or "console") and LogFile.
func (c Config) NewLogger() (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	if c.LogFormat != "json" {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	if c.LogFile != "" {
		cfg.OutputPaths = []string{c.LogFile}
	}
	return cfg.Build()
}
