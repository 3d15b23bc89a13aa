package backend

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pocketbook/internal/config"
	gsheet "pocketbook/internal/sheets/google"
)

// Config is the subset of application settings needed to open storage,
// messaging and the mirror.
type Config struct {
	Data         DataBackend
	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string

	Mirror MirrorType
	Google gsheet.Config

	AllotmentCacheTTL  time.Duration
	AllotmentCacheSize int
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Data:         DataBackend(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,

		Mirror: MirrorType(appConfig.MirrorBackend),
		Google: gsheet.Config{
			SpreadsheetID:      appConfig.GoogleSpreadsheetID,
			SheetName:          appConfig.GoogleSheetName,
			ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
			ServiceAccountFile: appConfig.GoogleServiceAccountFile,
		},

		AllotmentCacheTTL:  appConfig.AllotmentCacheTTL,
		AllotmentCacheSize: appConfig.AllotmentCacheSize,
	}
	if cfg.Mirror == "" {
		cfg.Mirror = MirrorNone
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	var errs []string

	switch c.Data {
	case SQLiteBackend:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			errs = append(errs, "sqlite database path is required for the sqlite backend")
		}
	case PostgresBackend:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, "database url is required for the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend %q", c.Data))
	}

	if !c.Mirror.IsValid() {
		errs = append(errs, fmt.Sprintf("invalid mirror backend %q", c.Mirror))
	}
	if c.Mirror == MirrorSheets && strings.TrimSpace(c.Google.SpreadsheetID) == "" {
		errs = append(errs, "spreadsheet id is required for the sheets mirror")
	}
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		errs = append(errs, "amqp exchange is required when amqp is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("backend config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the connection string for the configured dialect.
func (c Config) DSN() string {
	if c.Data == PostgresBackend {
		return c.DatabaseURL
	}
	return c.SQLiteDBPath
}
